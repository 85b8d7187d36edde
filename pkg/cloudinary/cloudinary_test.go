package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestListParamsTargetsUploadedRawAssets(t *testing.T) {
	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/proctor/"}, zerolog.Nop())
	require.NoError(t, err)

	params := svc.listParams("midterm/activities/", "cursor-1", 0)
	require.Equal(t, "upload", params.DeliveryType)
	require.Equal(t, rawAssetType, params.AssetType)
	require.Equal(t, "proctor/midterm/activities/", params.Prefix)
	require.Equal(t, maxListResults, params.MaxResults)
	require.Equal(t, "cursor-1", params.NextCursor)

	capped := svc.listParams("", "", 50)
	require.Equal(t, 50, capped.MaxResults)
	require.Equal(t, "proctor/", capped.Prefix)
	require.Equal(t, "midterm/activities/s-1", svc.keyFromPublicID("proctor/midterm/activities/s-1"))
}
