package report

import (
	"fmt"
	"strings"
)

// Kind tags which variant a Diagnosis holds.
type Kind int

const (
	// KindNotApplicable means the host platform is not supported and no
	// check ran.
	KindNotApplicable Kind = iota
	// KindCompleted means every applicable check ran and Report is valid.
	KindCompleted
	// KindFatal means an unexpected fault aborted the run. Message holds
	// the rendered trace; no partial report is kept.
	KindFatal
)

var kindNames = map[Kind]string{
	KindNotApplicable: "not_applicable",
	KindCompleted:     "completed",
	KindFatal:         "fatal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown diagnosis kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	for kind, name := range kindNames {
		if name == value {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown diagnosis kind %q", value)
}

// Diagnosis is the overall result of one troubleshooter run.
type Diagnosis struct {
	Kind    Kind    `json:"kind" yaml:"kind"`
	Report  *Report `json:"report,omitempty" yaml:"report,omitempty"`
	Message string  `json:"message,omitempty" yaml:"message,omitempty"`
}

func NotApplicable() Diagnosis {
	return Diagnosis{Kind: KindNotApplicable}
}

func Completed(r Report) Diagnosis {
	return Diagnosis{Kind: KindCompleted, Report: &r}
}

func Fatal(message string) Diagnosis {
	return Diagnosis{Kind: KindFatal, Message: message}
}

// Healthy is true for a completed run with no failed checks, and for a
// platform where the troubleshooter does not apply.
func (d Diagnosis) Healthy() bool {
	switch d.Kind {
	case KindNotApplicable:
		return true
	case KindCompleted:
		return d.Report != nil && d.Report.OK()
	default:
		return false
	}
}
