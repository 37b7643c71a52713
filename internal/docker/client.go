// Package docker reports agent containers running on the local Docker
// daemon as remote agent records.
package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// APIClient defines the subset of Docker API methods we use.
// This allows for mocking in tests.
type APIClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	Close() error
}

// Client wraps the official Docker client.
type Client struct {
	api APIClient
}

// NewClient creates a new Docker client instance from the environment
// (DOCKER_HOST and friends).
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{api: cli}, nil
}

// NewClientWithAPI wraps an existing API implementation.
func NewClientWithAPI(api APIClient) *Client {
	return &Client{api: api}
}

// Close closes the underlying docker client connection.
func (c *Client) Close() error {
	return c.api.Close()
}

// CheckDaemon verifies that the Docker daemon is running and reachable.
func (c *Client) CheckDaemon(ctx context.Context) error {
	_, err := c.api.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker daemon is not reachable: %w", err)
	}
	return nil
}

// ListLabelled returns every container, running or not, carrying label=true.
func (c *Client) ListLabelled(ctx context.Context, label string) ([]container.Summary, error) {
	containers, err := c.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", label+"=true")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return containers, nil
}
