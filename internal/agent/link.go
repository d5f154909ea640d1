package agent

import (
	"context"

	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/protocol"
)

// LocalLink connects a foreground in the same process to the agent.
type LocalLink struct {
	Agent *Agent
}

func (l LocalLink) Send(ctx context.Context, env protocol.Envelope) error {
	return l.Agent.Deliver(ctx, env)
}

func (l LocalLink) Subscribe(ctx context.Context) (<-chan protocol.Envelope, error) {
	return l.Agent.Subscribe(ctx)
}

func (l LocalLink) Settings(ctx context.Context) (models.BackgroundSettings, error) {
	return l.Agent.Settings(ctx)
}
