package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	apperrors "sonar/backend/pkg/errors"
)

// Connect creates a Neo4j driver and verifies it can reach the server
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}

	return driver, nil
}
