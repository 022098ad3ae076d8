package smoke

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type abort struct{}

// recorder is the apitest.TestingT of a run. FailNow unwinds the current
// check only; the run goes on with the next one.
type recorder struct {
	log    *logrus.Entry
	errors []string
}

func (r *recorder) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recorder) FailNow() {
	panic(abort{})
}

func (r *recorder) Helper() {}

func (r *recorder) Logf(format string, args ...any) {
	r.log.Debugf(format, args...)
}

// run calls fn and returns the failures it reported.
func (r *recorder) run(fn func()) []string {
	r.errors = nil

	func() {
		defer func() {
			if v := recover(); v != nil {
				if _, ok := v.(abort); !ok {
					panic(v)
				}
			}
		}()
		fn()
	}()

	return r.errors
}
