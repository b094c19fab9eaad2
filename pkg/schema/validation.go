package schema

import "fmt"

// Problem is one defect found while checking a catalog or draft document.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Problems collects every defect of a document so they can be reported at
// once instead of stopping at the first.
type Problems struct {
	Code string
	List []Problem
}

// NewProblems starts an empty collection reported under code.
func NewProblems(code string) *Problems {
	return &Problems{Code: code}
}

// Addf records a defect at path.
func (p *Problems) Addf(path, format string, args ...any) {
	p.List = append(p.List, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Len returns the number of defects.
func (p *Problems) Len() int { return len(p.List) }

// Err returns nil when nothing was recorded. One defect becomes the error
// message; several are summarised with the full list in the details.
func (p *Problems) Err() error {
	if len(p.List) == 0 {
		return nil
	}
	msg := p.List[0].Message
	if len(p.List) > 1 {
		msg = fmt.Sprintf("%d problems, first: %s", len(p.List), p.List[0].Message)
	}
	return NewError(p.Code, msg).WithDetails(map[string]any{
		"problem_count": len(p.List),
		"problems":      p.List,
	})
}
