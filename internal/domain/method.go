package domain

// Method identifies an outlier rejection strategy.
type Method string

// Supported rejection methods.
const (
	// MethodStandard is recursive leave-one-out rejection with per-group
	// tie-breaking. Only groups with more than two members are examined.
	MethodStandard Method = "standard"

	// MethodSimple is a single pass against include-self group estimates.
	MethodSimple Method = "simple"

	// MethodTarget compares observations against an external reference dataset.
	MethodTarget Method = "target"
)

// Methods lists every supported method in a stable order.
func Methods() []Method {
	return []Method{MethodStandard, MethodSimple, MethodTarget}
}

// String returns the string representation of the method.
func (m Method) String() string { return string(m) }

// IsValid reports whether m is one of the supported methods.
func (m Method) IsValid() bool {
	switch m {
	case MethodStandard, MethodSimple, MethodTarget:
		return true
	default:
		return false
	}
}

// RequiresTarget reports whether the method needs a reference dataset.
func (m Method) RequiresTarget() bool { return m == MethodTarget }
