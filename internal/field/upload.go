package field

import (
	"fmt"

	"github.com/matthewbaird/formflow/internal/types"
)

// FileUpload stores the list of accepted files for an upload page. The
// upload handler merges scanned file records into state under the field
// name; this type only projects them. Its context value is the file
// count, so conditions can gate on "uploaded at least one file".
type FileUpload struct {
	def types.Component
}

func (f *FileUpload) Def() types.Component { return f.def }
func (f *FileUpload) Keys() []string       { return []string{f.def.Name} }

// files filters the stored list down to accepted records.
func (f *FileUpload) files(state map[string]any) []map[string]any {
	var out []map[string]any
	for _, v := range sliceValue(state[f.def.Name]) {
		rec, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (f *FileUpload) FormValueFromState(state map[string]any) any {
	files := f.files(state)
	out := make([]any, len(files))
	for i, rec := range files {
		out[i] = rec
	}
	return out
}

func (f *FileUpload) ContextValueFromState(state map[string]any) any {
	return float64(len(f.files(state)))
}

func (f *FileUpload) StateFromValidForm(payload map[string]any) map[string]any {
	if v, ok := payload[f.def.Name]; ok {
		return map[string]any{f.def.Name: sliceValue(v)}
	}
	return map[string]any{f.def.Name: []any{}}
}

func (f *FileUpload) FormDataFromState(state map[string]any) map[string]any {
	return map[string]any{f.def.Name: f.FormValueFromState(state)}
}

func (f *FileUpload) DisplayStringFromState(state map[string]any) string {
	n := len(f.files(state))
	if n == 1 {
		return "1 file uploaded"
	}
	return fmt.Sprintf("%d files uploaded", n)
}

func (f *FileUpload) Validate(payload map[string]any) []ValidationError {
	if len(sliceValue(payload[f.def.Name])) == 0 && f.def.Options.IsRequired() {
		return []ValidationError{errorFor(f.def.Name, "Upload %s", f.def.Title)}
	}
	return nil
}
