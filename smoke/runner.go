// Package smoke runs smoke checks against a live API target: the ping and
// version checks plus a plan of endpoints, collecting failures as findings
// instead of stopping at the first one.
package smoke

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	jd "github.com/josephburnett/jd/lib"
	"github.com/phux/apiunit/apitest"
	"github.com/phux/apiunit/caller"
	"github.com/phux/apiunit/internal/logger"
	"github.com/phux/apiunit/paths"
	"github.com/phux/apiunit/target"
	"github.com/sirupsen/logrus"
)

var ErrJSONMismatch = errors.New("JSON mismatch")

// Checks selects the built-in checks.
type Checks struct {
	Ping        bool
	Version     bool
	AuthVersion bool
}

type Runner struct {
	Results *Results
	suite   *apitest.Suite
	rec     *recorder
	log     *logrus.Entry
}

func NewRunner(tgt target.Target, rateLimit float64, headers map[string]string) *Runner {
	log := logrus.NewEntry(logger.Logger()).WithField("target", tgt.String())
	rec := &recorder{log: log}

	return &Runner{
		Results: &Results{Findings: []Finding{}},
		suite: apitest.New(
			rec,
			tgt,
			apitest.WithHeaders(headers),
			apitest.WithLogger(log),
			apitest.WithCallerOptions(caller.WithRateLimit(rateLimit)),
		),
		rec: rec,
		log: log,
	}
}

// Run executes the selected built-in checks, then every endpoint of plan. It only
// returns an error for a malformed plan; failed calls become findings.
func (r *Runner) Run(checks Checks, plan Plan) error {
	if checks.Ping {
		r.check(r.suite.Target().URL(0, "ping"), func() { r.suite.AssertHasPing() })
	}
	if checks.Version {
		r.check(r.suite.Target().URL(0, "version"), func() { r.suite.AssertHasVersion() })
	}
	if checks.AuthVersion {
		r.check(r.suite.Target().URL(0, "secured/version"), func() { r.suite.AssertHasAuthVersion() })
	}

	totalPaths := 0
	totalCheckedPaths := 0
	for _, endpoint := range plan.Endpoints {
		r.log.Infof("Checking %s %s", endpoint.method(), endpoint.RelativePath)

		initialFindings := r.Results.Len()

		checkedPaths, countPaths, err := r.CheckEndpoint(endpoint)
		totalCheckedPaths += checkedPaths
		totalPaths += countPaths
		if err != nil {
			return err
		}

		result := "Success"
		if r.Results.Len() != initialFindings {
			result = "ERROR"
		}

		r.log.Infof(
			"%s: %s %s (checked %d of %d paths)",
			result,
			endpoint.method(),
			endpoint.RelativePath,
			checkedPaths,
			countPaths,
		)
	}

	r.log.Infof("Done. Checked %d of %d paths, %d findings", totalCheckedPaths, totalPaths, r.Results.Len())

	return nil
}

// CheckEndpoint calls every path endpoint expands to and returns how many
// were checked without a finding, and how many there were.
func (r *Runner) CheckEndpoint(endpoint Endpoint) (int, int, error) {
	if err := endpoint.validatePatternPrefixAndSuffixMatch(); err != nil {
		return 0, 0, err
	}

	opts := paths.DefaultOptions
	if endpoint.PatternPrefix != nil {
		opts = paths.Options{PatternPrefix: *endpoint.PatternPrefix, PatternSuffix: *endpoint.PatternSuffix}
	}

	relativePaths, err := paths.Expand(endpoint.RelativePath, opts)
	if err != nil {
		return 0, 0, fmt.Errorf("CheckEndpoint: could not resolve relative paths: %w", err)
	}

	body, err := endpoint.body()
	if err != nil {
		return 0, len(relativePaths), err
	}

	callOpts := []apitest.CallOption{apitest.WithStatus(endpoint.status())}
	for key, value := range endpoint.RequestHeaders {
		callOpts = append(callOpts, apitest.WithHeader(key, value))
	}

	checkedPaths := 0
	for _, relativePath := range relativePaths {
		url := r.suite.Target().URL(0, relativePath)

		var res *caller.Response
		ok := r.check(url, func() {
			res = r.suite.AssertMethodReturnContent(endpoint.method(), relativePath, body, "application/json", callOpts...)
		})
		if !ok {
			continue
		}

		if endpoint.ExpectedBody != nil {
			diff, err := subsetDiff(endpoint.ExpectedBody, res.Body)
			if err != nil {
				r.Results.add(url, "", err.Error())

				continue
			}
			if diff != "" {
				r.Results.add(url, diff, ErrJSONMismatch.Error())

				continue
			}
		}

		checkedPaths++
	}

	return checkedPaths, len(relativePaths), nil
}

// check runs fn and turns its failures into one finding for url.
func (r *Runner) check(url string, fn func()) bool {
	failures := r.rec.run(fn)
	if len(failures) == 0 {
		return true
	}

	r.log.WithField("url", url).Warn("check failed")
	r.Results.add(url, "", strings.Join(failures, "\n"))

	return false
}

// subsetDiff renders the jd diff between expected and the keys of body that
// expected names. Extra keys in body are ignored.
func subsetDiff(expected map[string]any, body []byte) (string, error) {
	var actual map[string]any
	if err := json.Unmarshal(body, &actual); err != nil {
		return "", fmt.Errorf("%w: expected a JSON object: %s", ErrJSONMismatch, err)
	}

	picked := make(map[string]any, len(expected))
	for key := range expected {
		if value, ok := actual[key]; ok {
			picked[key] = value
		}
	}

	want, err := json.Marshal(expected)
	if err != nil {
		return "", err
	}
	got, err := json.Marshal(picked)
	if err != nil {
		return "", err
	}

	first, err := jd.ReadJsonString(string(want))
	if err != nil {
		return "", err
	}
	second, err := jd.ReadJsonString(string(got))
	if err != nil {
		return "", err
	}

	return first.Diff(second).Render(), nil
}
