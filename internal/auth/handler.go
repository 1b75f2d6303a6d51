package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// Handler exposes the service over gRPC. Requests and responses are
// google.protobuf.Struct messages; see service_desc.go for the method table.
type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

func (h *Handler) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := stringField(req, "username")
	h.log.Info("handling login request", zap.String("username", username))

	token, err := h.service.Authenticate(ctx, username, stringField(req, "password"))
	if err != nil {
		return nil, ToStatus(err)
	}

	view, err := h.service.ValidateSession(ctx, token)
	if err != nil {
		return nil, ToStatus(err)
	}

	return reply(map[string]any{
		"token":       token,
		"username":    view.Username,
		"is_admin":    view.IsAdmin,
		"permissions": stringList(view.Permissions),
		"expires_at":  view.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) ValidateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := stringField(req, "token")
	if token == "" {
		token = TokenFromContext(ctx)
	}

	view, err := h.service.ValidateSession(ctx, token)
	if err != nil {
		return nil, ToStatus(err)
	}
	return reply(sessionViewFields(view))
}

func (h *Handler) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ended, err := h.service.Logout(ctx, TokenFromContext(ctx))
	if err != nil {
		return nil, ToStatus(err)
	}
	return reply(map[string]any{"logged_out": ended})
}

func (h *Handler) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	view, err := SessionFromContext(ctx)
	if err != nil {
		return nil, ToStatus(ErrMissingToken)
	}

	err = h.service.ChangePassword(ctx, view.Token, stringField(req, "old_password"), stringField(req, "new_password"))
	if err != nil {
		return nil, ToStatus(err)
	}
	return reply(map[string]any{"changed": true})
}

func (h *Handler) CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := stringField(req, "username")
	h.log.Info("handling create user request",
		zap.String("username", username),
		zap.String("by", actor(ctx)))

	id, err := h.service.CreateUser(ctx, username, stringField(req, "password"), boolField(req, "is_admin"))
	if err != nil {
		return nil, ToStatus(err)
	}
	return reply(map[string]any{"user_id": id.String()})
}

func (h *Handler) ListUsers(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	users, err := h.service.ListUsers(ctx)
	if err != nil {
		return nil, ToStatus(err)
	}

	list := make([]any, 0, len(users))
	for _, u := range users {
		list = append(list, map[string]any{
			"id":         u.ID.String(),
			"username":   u.Username,
			"is_admin":   u.IsAdmin,
			"is_active":  u.IsActive,
			"created_at": u.CreatedAt.Format(time.RFC3339),
		})
	}
	return reply(map[string]any{"users": list})
}

func (h *Handler) DeleteUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := stringField(req, "username")
	h.log.Info("handling delete user request",
		zap.String("username", username),
		zap.String("by", actor(ctx)))

	deleted, err := h.service.DeleteUser(ctx, username)
	if err != nil {
		return nil, ToStatus(err)
	}
	return reply(map[string]any{"deleted": deleted})
}

func (h *Handler) SetAdmin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := stringField(req, "username")
	isAdmin := boolField(req, "is_admin")
	h.log.Info("handling set admin request",
		zap.String("username", username),
		zap.Bool("is_admin", isAdmin),
		zap.String("by", actor(ctx)))

	if err := h.service.SetAdmin(ctx, username, isAdmin); err != nil {
		return nil, ToStatus(err)
	}
	return reply(map[string]any{"username": username, "is_admin": isAdmin})
}

func (h *Handler) ListActiveSessions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	active, err := h.service.ListActiveSessions(ctx)
	if err != nil {
		return nil, ToStatus(err)
	}

	list := make([]any, 0, len(active.Sessions))
	for _, s := range active.Sessions {
		list = append(list, map[string]any{
			"masked_token": s.MaskedToken,
			"username":     s.Username,
			"is_admin":     s.IsAdmin,
			"created_at":   s.CreatedAt.Format(time.RFC3339),
			"expires_at":   s.ExpiresAt.Format(time.RFC3339),
		})
	}
	return reply(map[string]any{"total": active.Total, "sessions": list})
}

func sessionViewFields(view *SessionView) map[string]any {
	return map[string]any{
		"session_id":  view.SessionID.String(),
		"user_id":     view.UserID.String(),
		"username":    view.Username,
		"is_admin":    view.IsAdmin,
		"permissions": stringList(view.Permissions),
		"created_at":  view.CreatedAt.Format(time.RFC3339),
		"expires_at":  view.ExpiresAt.Format(time.RFC3339),
	}
}

func actor(ctx context.Context) string {
	view, err := SessionFromContext(ctx)
	if err != nil {
		return ""
	}
	return view.Username
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func boolField(req *structpb.Struct, name string) bool {
	return req.GetFields()[name].GetBoolValue()
}

func stringList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func reply(fields map[string]any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, ToStatus(internalError(err))
	}
	return resp, nil
}
