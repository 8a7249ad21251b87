package snapshot

import "encoding/json"

// TokenCost carries per-token USD pricing for a model. In JSON it accepts
// either a flat rate (applied to both prompt and completion tokens) or a
// {prompt, completion} object, mirroring the way providers.Message accepts
// either a plain string or a content-part array for its Content field.
// YAML bootstrap documents accept only the {prompt, completion} object form.
type TokenCost struct {
	Prompt     float64
	Completion float64
}

// Estimate returns the USD cost of promptTokens+completionTokens at this rate.
func (c TokenCost) Estimate(promptTokens, completionTokens int) float64 {
	return c.Prompt*float64(promptTokens) + c.Completion*float64(completionTokens)
}

// UnmarshalJSON accepts a bare number (flat rate for both prompt and
// completion tokens) or an object of the form {"prompt":x,"completion":y}.
func (c *TokenCost) UnmarshalJSON(b []byte) error {
	var flat float64
	if err := json.Unmarshal(b, &flat); err == nil {
		c.Prompt = flat
		c.Completion = flat
		return nil
	}

	var obj struct {
		Prompt     float64 `json:"prompt"`
		Completion float64 `json:"completion"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	c.Prompt = obj.Prompt
	c.Completion = obj.Completion
	return nil
}

// MarshalJSON always encodes the object form so round-tripping never loses
// the per-role split, even if the source document used the flat shorthand.
func (c TokenCost) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Prompt     float64 `json:"prompt"`
		Completion float64 `json:"completion"`
	}{c.Prompt, c.Completion})
}
