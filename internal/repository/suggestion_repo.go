package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/noah-isme/gema-proctor/internal/models"
)

func suggestionPrefix(session, student string) string {
	if student == "" {
		return session + "/suggestions/"
	}
	return session + "/suggestions/" + student + "/"
}

// SuggestionKey returns the content-addressed key of a suggestion. occurrence
// numbers identical findings within one analysis run so they do not collide;
// writing the same finding with the same occurrence lands on the same key.
func SuggestionKey(session, student string, suggestion models.Suggestion, occurrence int) string {
	digest := xxhash.New()
	_, _ = digest.WriteString(string(suggestion.Type))
	_, _ = digest.WriteString("\x00")
	_, _ = digest.WriteString(suggestion.Description)
	_, _ = digest.WriteString("\x00")
	_, _ = digest.WriteString(strconv.Itoa(occurrence))
	return suggestionPrefix(session, student) + "suggest_" + strconv.FormatUint(digest.Sum64(), 16)
}

// SuggestionRepository persists findings under a session/student scope.
type SuggestionRepository interface {
	// Keys lists suggestion keys for one student, or the whole session when student is empty.
	Keys(ctx context.Context, session, student string) ([]string, error)
	List(ctx context.Context, session, student string) ([]models.Suggestion, error)
	// Save stores a suggestion; occurrence tells apart identical findings of one run.
	Save(ctx context.Context, session string, suggestion models.Suggestion, occurrence int) (string, error)
	DeleteAll(ctx context.Context, session, student string) (int, error)
}

type suggestionRepository struct {
	store BlobStore
}

// NewSuggestionRepository constructs the suggestion repository.
func NewSuggestionRepository(store BlobStore) SuggestionRepository {
	return &suggestionRepository{store: store}
}

func (r *suggestionRepository) Keys(ctx context.Context, session, student string) ([]string, error) {
	return ListAll(ctx, r.store, suggestionPrefix(session, student))
}

func (r *suggestionRepository) List(ctx context.Context, session, student string) ([]models.Suggestion, error) {
	keys, err := r.Keys(ctx, session, student)
	if err != nil {
		return nil, err
	}

	suggestions := make([]models.Suggestion, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}

		var suggestion models.Suggestion
		if err := json.Unmarshal(data, &suggestion); err != nil {
			return nil, fmt.Errorf("decode suggestion %s: %w", key, err)
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, nil
}

func (r *suggestionRepository) Save(ctx context.Context, session string, suggestion models.Suggestion, occurrence int) (string, error) {
	payload, err := json.Marshal(suggestion)
	if err != nil {
		return "", err
	}

	key := SuggestionKey(session, suggestion.StudentID, suggestion, occurrence)
	if err := r.store.Put(ctx, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

func (r *suggestionRepository) DeleteAll(ctx context.Context, session, student string) (int, error) {
	keys, err := r.Keys(ctx, session, student)
	if err != nil {
		return 0, err
	}
	if err := r.store.DeleteMany(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}
