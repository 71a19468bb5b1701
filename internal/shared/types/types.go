package types

// ExecutionResult is the structured outcome of one script invocation.
// Success is false iff Error is set and Value is absent.
type ExecutionResult struct {
	Success    bool   `json:"success"`
	Value      any    `json:"value,omitempty"`
	Output     string `json:"output"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ProjectType distinguishes how an instance's project is opened.
type ProjectType string

const (
	ProjectSolo     ProjectType = "solo"
	ProjectTeamwork ProjectType = "teamwork"
	ProjectUntitled ProjectType = "untitled"
)

// Instance describes a running CAD instance discovered on the local machine.
type Instance struct {
	Port           int         `json:"port"`
	ProjectName    string      `json:"project_name"`
	ProjectPath    string      `json:"project_path,omitempty"`
	ProjectType    ProjectType `json:"project_type"`
	Version        string      `json:"version"`
	AddOnAvailable bool        `json:"addon_available"`
}

// Property describes one element property definition exposed by an instance.
type Property struct {
	Name        string `json:"name"`
	Group       string `json:"group"`
	GUID        string `json:"guid"`
	Type        string `json:"type"`
	ValueType   string `json:"value_type"`
	MeasureType string `json:"measure_type"`
	Editable    bool   `json:"editable"`
}

// CommandAPI identifies which command namespace a documented command belongs to.
type CommandAPI string

const (
	APIBuiltin CommandAPI = "builtin"
	APIAddOn   CommandAPI = "addon"
)

// CommandDoc documents a single remote command.
type CommandDoc struct {
	Name        string     `json:"name" yaml:"name"`
	API         CommandAPI `json:"api" yaml:"api"`
	Category    string     `json:"category" yaml:"category"`
	Description string     `json:"description" yaml:"description"`
}
