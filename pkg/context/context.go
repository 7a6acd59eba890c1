package context

import "context"

type ContextKey string

var (
	RequestIDKey        = ContextKey("X-Request-Id")
	MethodKey           = ContextKey("X-Method")
	RouteKey            = ContextKey("X-Route")
	RemoteIPKey         = ContextKey("X-Remote-Ip")
	OperatorIDKey       = ContextKey("X-Operator-Id")
	OperatorInitialsKey = ContextKey("X-Operator-Initials")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	value, ok := ctx.Value(MethodKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	value, ok := ctx.Value(RouteKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	value, ok := ctx.Value(RemoteIPKey).(string)
	if !ok {
		return ""
	}
	return value
}

// SetOperatorID stores the id (NIK) of the operator making the request.
func SetOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, OperatorIDKey, operatorID)
}

func GetOperatorID(ctx context.Context) string {
	value, ok := ctx.Value(OperatorIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetOperatorInitials(ctx context.Context, initials string) context.Context {
	return context.WithValue(ctx, OperatorInitialsKey, initials)
}

func GetOperatorInitials(ctx context.Context) string {
	value, ok := ctx.Value(OperatorInitialsKey).(string)
	if !ok {
		return ""
	}
	return value
}
