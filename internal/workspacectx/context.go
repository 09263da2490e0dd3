package workspacectx

import "context"

type contextKey string

const (
	workspaceIDKey contextKey = "workspace_id"
	apiKeyIDKey    contextKey = "api_key_id"
)

// WithWorkspaceID stores the authenticated workspace identity on the context.
func WithWorkspaceID(ctx context.Context, workspaceID int64) context.Context {
	return context.WithValue(ctx, workspaceIDKey, workspaceID)
}

// WorkspaceIDFromContext returns the workspace identity, if present.
func WorkspaceIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(workspaceIDKey).(int64)
	return id, ok
}

// WithAPIKeyID stores the paying agent identity on the context.
func WithAPIKeyID(ctx context.Context, apiKeyID int64) context.Context {
	return context.WithValue(ctx, apiKeyIDKey, apiKeyID)
}

// APIKeyIDFromContext returns the paying agent identity, if present.
func APIKeyIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(apiKeyIDKey).(int64)
	return id, ok
}
