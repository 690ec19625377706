package formatting

import (
	"encoding/json"
	"fmt"
)

// PrettyJSON formats any value as indented JSON for human-readable display.
// It falls back to fmt.Sprintf when marshaling fails.
func PrettyJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
