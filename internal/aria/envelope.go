// ABOUTME: Request envelope construction for the ARIA gateway endpoint.
// ABOUTME: Wraps every typed field in the {Value: ...} cell the endpoint requires.

package aria

// Namespace is the service namespace embedded in every __type discriminator
// the gateway endpoint dispatches on.
const Namespace = "http://services.varian.com/AriaWebConnect/Link"

// ProcessPath is the single RPC-style gateway endpoint. Dispatch happens on
// the embedded __type discriminator, not the URL path.
const ProcessPath = "/Gateway/Service.svc/rest/Process"

// WrapEnvelope builds the gateway request envelope for the given request type
// and field mapping. Every field is wrapped as {"Value": v} with no dropping,
// renaming, or coercion; an explicit nil stays an explicit null because the
// remote API distinguishes "omitted" from "null". Defaulting of absent
// optional fields is the caller's job, not the envelope's.
func WrapEnvelope(requestType string, fields map[string]any) map[string]any {
	env := make(map[string]any, len(fields)+2)
	env["__type"] = requestType + ":" + Namespace
	env["Attributes"] = nil
	for name, value := range fields {
		env[name] = map[string]any{"Value": value}
	}
	return env
}
