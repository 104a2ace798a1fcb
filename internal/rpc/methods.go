package rpc

// Method is the closed set of RPC methods the bridge serves. Adding a method
// means adding a constant here, a case in Dispatcher.Call, and an Adapter
// operation; the switch in Call has no default fallthrough to a handler.
type Method string

const (
	MethodCreateIssue  Method = "create_issue"
	MethodUpdateIssue  Method = "update_issue"
	MethodGetIssue     Method = "get_issue"
	MethodSearchIssues Method = "search_issues"
)

// Methods lists every supported method, in stable order.
func Methods() []Method {
	return []Method{
		MethodCreateIssue,
		MethodUpdateIssue,
		MethodGetIssue,
		MethodSearchIssues,
	}
}

// ParseMethod resolves a wire method name. The second return is false for
// anything outside the supported set.
func ParseMethod(name string) (Method, bool) {
	switch Method(name) {
	case MethodCreateIssue, MethodUpdateIssue, MethodGetIssue, MethodSearchIssues:
		return Method(name), true
	}
	return "", false
}
