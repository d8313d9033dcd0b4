package v3

// NULL (RFC 1813 Section 3.3.0) carries no arguments and no results.
// The decode/encode routines exist so the dispatch table can treat every
// procedure uniformly.

// NullRequest is the empty NULL argument.
type NullRequest struct{}

// NullResponse is the empty NULL result.
type NullResponse struct{}

// DecodeNullRequest accepts an empty body.
func DecodeNullRequest(data []byte) (*NullRequest, error) {
	return &NullRequest{}, nil
}

// Encode serialises the empty NULL result.
func (resp *NullResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}
