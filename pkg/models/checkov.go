package models

// Raw scanner output types. Checkov's JSON report carries a summary block
// and per-check results; only failed checks become findings.

type CheckovReport struct {
	CheckType string         `json:"check_type"`
	Results   CheckovResults `json:"results"`
	Summary   CheckovSummary `json:"summary"`
}

type CheckovResults struct {
	PassedChecks  []CheckovCheck `json:"passed_checks"`
	FailedChecks  []CheckovCheck `json:"failed_checks"`
	SkippedChecks []CheckovCheck `json:"skipped_checks"`
}

type CheckovSummary struct {
	Passed         int `json:"passed"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
	ParsingErrors  int `json:"parsing_errors"`
	ResourceCount  int `json:"resource_count"`
	CheckovVersion any `json:"checkov_version,omitempty"`
}

type CheckovCheck struct {
	CheckID         string     `json:"check_id"`
	CheckName       string     `json:"check_name"`
	CheckClass      string     `json:"check_class,omitempty"`
	Severity        string     `json:"severity,omitempty"`
	Resource        string     `json:"resource,omitempty"`
	ResourceType    string     `json:"resource_type,omitempty"`
	FilePath        string     `json:"file_path"`
	FileAbsPath     string     `json:"file_abs_path,omitempty"`
	FileLineRange   []int      `json:"file_line_range,omitempty"`
	CodeBlock       [][2]any   `json:"code_block,omitempty"`
	Details         []string   `json:"details,omitempty"`
	Guideline       string     `json:"guideline,omitempty"`
	FixedDefinition any        `json:"fixed_definition,omitempty"`
	CheckResult     RawOutcome `json:"check_result"`
}

type RawOutcome struct {
	Result string `json:"result"`
}

// LineRange returns the (start, end) pair, tolerating missing or short
// ranges the way the scanner sometimes emits them.
func (c *CheckovCheck) LineRange() (int, int) {
	switch len(c.FileLineRange) {
	case 0:
		return 0, 0
	case 1:
		return c.FileLineRange[0], c.FileLineRange[0]
	default:
		return c.FileLineRange[0], c.FileLineRange[1]
	}
}

// RunAggregate is the combined outcome of scanning one upload: every failed
// check across frameworks plus the summed summary counters.
type RunAggregate struct {
	FailedChecks []CheckovCheck
	Passed       int
	Failed       int
	Skipped      int
	Frameworks   []string
	FilesScanned int
}

func (a *RunAggregate) Total() int {
	return a.Passed + a.Failed + a.Skipped
}

func (a *RunAggregate) Merge(report *CheckovReport) {
	if report == nil {
		return
	}
	a.Passed += report.Summary.Passed
	a.Failed += report.Summary.Failed
	a.Skipped += report.Summary.Skipped
	a.FailedChecks = append(a.FailedChecks, report.Results.FailedChecks...)
}
