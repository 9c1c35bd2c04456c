package endpoints

import (
	"github.com/finalyzer/finalyzer/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&RootEndpoint{},
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Analysis endpoints
		&AnalyzeEndpoint{},
		&AnalyzeSyncEndpoint{},
		&GetAnalysisEndpoint{},
		&ListJobsEndpoint{},
	}
}
