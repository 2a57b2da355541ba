package transport

import "strings"

// Root is the first segment of every topic.
const Root = "edge"

// ResponsesPattern matches the response topic of every module. Callers
// subscribe to it to receive replies to their invocations.
const ResponsesPattern = Root + "/+/methods/response/+"

// OutputTopic is where a module publishes data on a logical channel.
func OutputTopic(module, channel string) string {
	return Root + "/" + module + "/outputs/" + channel
}

// InputTopic addresses a logical input channel of a module.
func InputTopic(module, channel string) string {
	return Root + "/" + module + "/inputs/" + channel
}

// InputsPattern matches every input of a module.
func InputsPattern(module string) string {
	return Root + "/" + module + "/inputs/#"
}

// MethodTopic is the invocation topic of a method on a module.
func MethodTopic(module, method string) string {
	return Root + "/" + module + "/methods/" + method
}

// MethodsPattern matches every method invocation addressed to a module.
func MethodsPattern(module string) string {
	return Root + "/" + module + "/methods/+"
}

// ResponseTopic is where the callee publishes the reply for a correlation id.
func ResponseTopic(module, correlationID string) string {
	return Root + "/" + module + "/methods/response/" + correlationID
}

// ReportedTopic carries reported state/property updates of a module.
func ReportedTopic(module string) string {
	return Root + "/" + module + "/twin/reported"
}

// DesiredTopic carries desired configuration updates for a module.
func DesiredTopic(module string) string {
	return Root + "/" + module + "/twin/desired"
}

// MatchTopic reports whether topic matches an MQTT style pattern. "+" matches
// exactly one level and a trailing "#" matches any number of remaining levels,
// including none.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	for i, p := range pp {
		if p == "#" {
			return i == len(pp)-1
		}
		if i >= len(tp) {
			return false
		}
		if p != "+" && p != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}

type topicKind int

const (
	kindData topicKind = iota
	kindInvocation
	kindResponse
	kindDesired
	kindReported
)

func (k topicKind) String() string {
	switch k {
	case kindInvocation:
		return "method-invocation"
	case kindResponse:
		return "method-response"
	case kindDesired:
		return "twin-desired"
	case kindReported:
		return "twin-reported"
	default:
		return "data"
	}
}

// parsedTopic is the classification of an inbound topic. name holds the
// method, the correlation id or the logical channel depending on kind.
type parsedTopic struct {
	kind   topicKind
	module string
	name   string
}

func parseTopic(topic string) parsedTopic {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[0] != Root {
		return parsedTopic{kind: kindData, name: "default"}
	}
	module := parts[1]
	switch parts[2] {
	case "methods":
		if len(parts) >= 5 && parts[3] == "response" {
			return parsedTopic{kind: kindResponse, module: module, name: strings.Join(parts[4:], "/")}
		}
		if len(parts) == 4 {
			return parsedTopic{kind: kindInvocation, module: module, name: parts[3]}
		}
	case "twin":
		if len(parts) == 4 && parts[3] == "desired" {
			return parsedTopic{kind: kindDesired, module: module}
		}
		if len(parts) == 4 && parts[3] == "reported" {
			return parsedTopic{kind: kindReported, module: module}
		}
	case "outputs":
		if len(parts) >= 4 {
			return parsedTopic{kind: kindData, module: module, name: strings.Join(parts[3:], "/")}
		}
	case "inputs":
		if len(parts) >= 4 && parts[3] != "" {
			return parsedTopic{kind: kindData, module: module, name: parts[3]}
		}
	}
	return parsedTopic{kind: kindData, module: module, name: "default"}
}
