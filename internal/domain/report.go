package domain

import "time"

// Stage names used in run reports and metrics.
const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageCluster   = "cluster"
	StageSynthesis = "synthesis"
	StageStore     = "store"
	StageAnalysis  = "analysis"
	StagePublish   = "publish"
)

// StageReport counts what a stage attempted and what came out of it.
type StageReport struct {
	Stage     string `json:"stage"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// RunReport summarises one generation run for a desk.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Desk       string        `json:"desk"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stages     []StageReport `json:"stages"`
	Items      int           `json:"items"`
	Clusters   int           `json:"clusters"`
	Posts      int           `json:"posts"`
	Artifact   string        `json:"artifact,omitempty"`
}
