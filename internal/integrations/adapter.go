package integrations

import "github.com/ArvsGastardo/VWT-DLSU/internal/model"

// SourceAdapter pulls scenario geometry out of an external survey
// system. Ref is adapter specific: a file path, an export id, a
// folder.
type SourceAdapter interface {
    Name() string
    Fetch(ref string) (model.ScenarioInput, error)
}
