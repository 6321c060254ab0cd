package update

import (
	"encoding/json"
	"os"
	"time"
)

// markerSuffix is appended to a cached item's path to form its marker file.
const markerSuffix = ".lastUpdated"

// Record is one repository's entry in a marker file: when the item was last
// checked against that repository and, for negative results, the failure
// that was observed.
type Record struct {
	Updated      time.Time `json:"updated"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Failed reports whether the record holds a cached negative result.
func (r Record) Failed() bool { return r.ErrorCode != "" }

// MarkerStore persists staleness records as one small JSON file per cached
// item, co-located with the content (<path>.lastUpdated), keyed inside by
// repository id. A corrupt marker file is treated as absent and rewritten
// on the next store.
type MarkerStore struct{}

func markerPath(file string) string { return file + markerSuffix }

func (MarkerStore) load(file string) map[string]Record {
	data, err := os.ReadFile(markerPath(file))
	if err != nil {
		return nil
	}
	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}

// Get returns the record for the item at file as checked against the given
// repository.
func (s MarkerStore) Get(file, repositoryID string) (Record, bool) {
	rec, ok := s.load(file)[repositoryID]
	return rec, ok
}

// Put stores the record for the item at file under the given repository,
// keeping the other repositories' entries.
func (s MarkerStore) Put(file, repositoryID string, rec Record) error {
	records := s.load(file)
	if records == nil {
		records = make(map[string]Record, 1)
	}
	records[repositoryID] = rec
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return os.WriteFile(markerPath(file), data, 0644)
}

// Drop removes the repository's record for the item at file, deleting the
// marker file when it was the last entry.
func (s MarkerStore) Drop(file, repositoryID string) error {
	records := s.load(file)
	if _, ok := records[repositoryID]; !ok {
		return nil
	}
	delete(records, repositoryID)
	if len(records) == 0 {
		err := os.Remove(markerPath(file))
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return os.WriteFile(markerPath(file), data, 0644)
}
