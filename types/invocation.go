package types

// Invocation is a deferred call: a registered (type, method) pair plus the
// already-evaluated arguments, in positional order.
type Invocation struct {
	TypeName   string
	MethodName string
	Args       []any
}

// NewInvocation is a shorthand for building an Invocation.
func NewInvocation(typeName, methodName string, args ...any) Invocation {
	return Invocation{TypeName: typeName, MethodName: methodName, Args: args}
}
