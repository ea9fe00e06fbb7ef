//go:build property
// +build property

package routes

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/pagewith/internal/logging"
)

func TestPatchRemovalProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	sizes := gen.SliceOfN(6, gen.IntRange(1, 4))
	removals := gen.SliceOfN(6, gen.Bool())

	properties.Property("removing any subset leaves exactly the other groups", prop.ForAll(
		func(counts []int, remove []bool) bool {
			r := NewRouter(logging.Discard())
			r.Base(func(mux Mux) {
				mux.HandleFunc("GET /base", func(w http.ResponseWriter, _ *http.Request) {})
			})

			patches := make([]Patch, len(counts))
			for i, n := range counts {
				patches[i] = r.Apply(func(mux Mux) {
					for j := 0; j < n; j++ {
						mux.HandleFunc(fmt.Sprintf("GET /g%d/h%d", i, j), func(w http.ResponseWriter, _ *http.Request) {})
					}
				})
			}

			// Remove back to front so the order differs from insertion.
			want := 1
			for i := len(patches) - 1; i >= 0; i-- {
				if remove[i] {
					patches[i].Remove()
					patches[i].Remove()
				} else {
					want += counts[i]
				}
			}
			if r.Len() != want {
				return false
			}

			for i := range patches {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/g%d/h0", i), nil))
				if remove[i] != (rec.Code == http.StatusNotFound) {
					return false
				}
			}

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/base", nil))
			return rec.Code == http.StatusOK
		},
		sizes, removals,
	))

	properties.TestingRun(t)
}
