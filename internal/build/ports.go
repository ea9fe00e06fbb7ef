package build

import "context"

// Bundler runs one compilation of an entry module and reports a tagged
// Outcome. Emitted files are written to out.
//
//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks
type Bundler interface {
	Bundle(ctx context.Context, entryPath string, out OutputTarget) Outcome
}

// OutputTarget receives the files a Bundler emits.
type OutputTarget interface {
	Write(path string, content []byte) error
}
