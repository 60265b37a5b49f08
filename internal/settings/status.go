package settings

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
)

// ExtractionMarker reports the last fact extraction pass.
type ExtractionMarker interface {
	LastExtraction(ctx context.Context) (at, runID string, err error)
}

// Status describes where ClawScope keeps its state.
type Status struct {
	SettingsPath      string `json:"settingsPath"`
	SettingsExists    bool   `json:"settingsExists"`
	MemoryDBPath      string `json:"memoryDbPath"`
	MemoryDBExists    bool   `json:"memoryDbExists"`
	CompanionURL      string `json:"companionUrl"`
	LastExtractionAt  string `json:"lastExtractionAt,omitempty"`
	LastExtractionRun string `json:"lastExtractionRun,omitempty"`
}

// Reporter assembles Status.
type Reporter struct {
	Store        *Store
	MemoryDBPath string
	CompanionURL string
	Marker       ExtractionMarker
}

// Status never fails; an unreadable extraction marker is logged and left blank.
func (r *Reporter) Status(ctx context.Context) Status {
	st := Status{
		SettingsPath:   r.Store.Path(),
		SettingsExists: r.Store.Exists(),
		MemoryDBPath:   r.MemoryDBPath,
		CompanionURL:   r.CompanionURL,
	}
	if _, err := os.Stat(r.MemoryDBPath); err == nil {
		st.MemoryDBExists = true
	}
	if r.Marker != nil {
		at, run, err := r.Marker.LastExtraction(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("read extraction marker")
		} else {
			st.LastExtractionAt = at
			st.LastExtractionRun = run
		}
	}
	return st
}
