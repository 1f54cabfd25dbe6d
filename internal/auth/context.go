package auth

import "context"

type contextKey string

const contextKeyStaff contextKey = "staff"

func WithStaff(ctx context.Context, staff *Staff) context.Context {
	return context.WithValue(ctx, contextKeyStaff, staff)
}

func StaffFromContext(ctx context.Context) (*Staff, bool) {
	s, ok := ctx.Value(contextKeyStaff).(*Staff)
	return s, ok && s != nil
}
