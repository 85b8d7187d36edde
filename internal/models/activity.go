package models

import "encoding/json"

// UnknownIP marks an activity whose originating address was not reported.
const UnknownIP = "N/A"

// Activity is a single event reported by the test client.
type Activity struct {
	Status string `json:"status"`
	// Timestamp is kept exactly as the client sent it and parsed during analysis.
	Timestamp Timestamp `json:"timestamp"`
	IP        string    `json:"ip"`
}

// ActivityLog is the append-only activity history of one student in one test session.
type ActivityLog struct {
	Name       string     `json:"name"`
	Surname    string     `json:"surname,omitempty"`
	Activities []Activity `json:"activities"`
}

// Timestamp holds the raw client timestamp. Clients send either a string or
// a number of milliseconds since the epoch.
type Timestamp string

// UnmarshalJSON accepts both string and numeric timestamps.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*t = Timestamp(value)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*t = Timestamp(number.String())
	return nil
}
