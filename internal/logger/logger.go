package logger

import (
	"fmt"

	"go.uber.org/zap"

	"backend/internal/config"
)

// New builds the process logger for the given environment.
func New(environment string) (*zap.SugaredLogger, error) {
	var (
		log *zap.Logger
		err error
	)
	if environment == config.EnvProd {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log.Sugar(), nil
}
