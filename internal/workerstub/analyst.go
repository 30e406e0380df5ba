package workerstub

import (
	"context"

	"github.com/nexusfab/fabric/internal/util"
)

// NewAnalyst stubs the analyst service: given an analysis request, it
// returns a trivial empty-findings summary.
func NewAnalyst() *Stub {
	s := NewStub("analyst")
	s.RegisterHandler("Analyze", handleAnalyze)
	return s
}

func handleAnalyze(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	analysisType := util.GetString(params, "analysis_type")
	if analysisType == "" {
		analysisType = "general"
	}

	result := map[string]interface{}{
		"analysis_type": analysisType,
		"summary":       "no issues found",
		"findings":      []interface{}{},
	}
	if threshold, ok := util.GetFloat64(params, "severity_threshold"); ok {
		result["severity_threshold"] = threshold
	}
	return result, nil
}
