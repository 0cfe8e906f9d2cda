package harness

// ItemSpec describes one order line in a scenario.
type ItemSpec struct {
	// MenuItem is the menu item id, used for item-level routing.
	MenuItem string `yaml:"menu_item"`

	// Category is the menu category id, used for category-level routing.
	Category string `yaml:"category,omitempty"`

	Name         string   `yaml:"name"`
	Quantity     int      `yaml:"quantity,omitempty"`
	Variant      string   `yaml:"variant,omitempty"`
	Modifiers    []string `yaml:"modifiers,omitempty"`
	Instructions string   `yaml:"instructions,omitempty"`
}

// OrderSpec declares an order the flow can create by number.
type OrderSpec struct {
	Number            string     `yaml:"number"`
	Type              string     `yaml:"type,omitempty"`
	ReservationLinked bool       `yaml:"reservation_linked,omitempty"`
	Items             []ItemSpec `yaml:"items,omitempty"`
}

// AssignmentSpec is a routing tuple installed before the flow runs.
type AssignmentSpec struct {
	Device string `yaml:"device"`
	Target string `yaml:"target"`
	Type   string `yaml:"type"`
}

// FailureSpec makes a device reject its next N deliveries.
type FailureSpec struct {
	Device string `yaml:"device"`
	Times  int    `yaml:"times"`
}

// ExpectClause names the error code a step must fail with. An empty code
// means the step must succeed.
type ExpectClause struct {
	Error string `yaml:"error,omitempty"`
}

// Step is one action in the scenario flow.
type Step struct {
	// Action is one of: create, transition, setUrgent, dispatch,
	// reprint, advance, scan.
	Action string `yaml:"action"`

	// Order is the order number the action applies to.
	Order string `yaml:"order,omitempty"`

	// To is the target status (transition).
	To string `yaml:"to,omitempty"`

	// Urgent is the urgency flag value (setUrgent).
	Urgent bool `yaml:"urgent,omitempty"`

	// Items restricts a dispatch to specific menu item ids.
	Items []string `yaml:"items,omitempty"`

	// Minutes moves the scenario clock forward (advance).
	Minutes int `yaml:"minutes,omitempty"`

	// Expect validates the step outcome. Nil means success required.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Scenario is a declarative end-to-end dispatch test.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Clock is the scenario start time in RFC 3339. Defaults to a fixed
	// instant so golden files stay stable.
	Clock string `yaml:"clock,omitempty"`

	DefaultDevice string           `yaml:"default_device,omitempty"`
	Assignments   []AssignmentSpec `yaml:"assignments,omitempty"`
	Failures      []FailureSpec    `yaml:"failures,omitempty"`
	Orders        []OrderSpec      `yaml:"orders"`
	Flow          []Step           `yaml:"flow"`
}

// TraceEvent records one executed step for golden comparison.
type TraceEvent struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Order  string `json:"order,omitempty"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// AuditLine is one audit entry, flattened for golden comparison.
type AuditLine struct {
	Action string `json:"action"`
	Level  string `json:"level"`
	Order  string `json:"order,omitempty"`
	By     string `json:"by"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step matched its expectation.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Tickets holds the rendered text of every ticket the sink accepted,
	// in delivery order.
	Tickets []string `json:"tickets"`

	// Notifications lists the scheduler events emitted by scan steps,
	// as "kind #number" strings.
	Notifications []string `json:"notifications,omitempty"`

	// Audit lists the audit trail in chronological order.
	Audit []AuditLine `json:"audit"`

	// Errors describes expectation mismatches. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}
