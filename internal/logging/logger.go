package logging

import (
	"go.uber.org/zap"
)

// New builds a development logger for local work and a JSON production
// logger everywhere else.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
