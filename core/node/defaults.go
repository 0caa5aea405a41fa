package node

// RegisterDefaultTypes registers the built-in node library (root, const, in,
// add, mul, tapIn, tapOut) onto reg. Each call is independent; registering
// the same type twice on the same registry returns NodeTypeAlreadyExists for
// the second call and leaves the first registration intact.
func RegisterDefaultTypes(reg *Registry) ReturnCode {
	defaults := []struct {
		name    string
		factory Factory
	}{
		{"root", newRootNode},
		{"const", newConstNode},
		{"in", newInNode},
		{"add", newAddNode},
		{"mul", newMulNode},
		{"tapIn", newTapInNode},
		{"tapOut", newTapOutNode},
	}

	for _, d := range defaults {
		if code := reg.Register(d.name, d.factory); code != Ok {
			return code
		}
	}
	return Ok
}
