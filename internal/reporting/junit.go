package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/dialcheck/dialcheck/internal/orchestration"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one suite run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one test call.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
}

// JUnitFailure represents an unsuccessful call.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a suite result to JUnit XML format.
func ConvertToJUnit(result *orchestration.SuiteResult) *JUnitTestSuites {
	durationSec := float64(result.DurationMs) / 1000.0

	suite := JUnitTestSuite{
		Name:      result.SuiteName,
		Tests:     result.Stats.TotalTests,
		Failures:  result.Stats.Failed,
		Time:      durationSec,
		Timestamp: result.StartedAt.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "pass_rate", Value: fmt.Sprintf("%.4f", result.Stats.PassRate)},
			{Name: "avg_accuracy", Value: fmt.Sprintf("%.2f", result.Stats.Accuracy.Avg)},
			{Name: "avg_empathy", Value: fmt.Sprintf("%.2f", result.Stats.Empathy.Avg)},
		},
	}

	for _, res := range result.Results {
		suite.TestCases = append(suite.TestCases, convertTestResult(result.SuiteName, res))
	}

	return &JUnitTestSuites{
		Tests:      result.Stats.TotalTests,
		Failures:   result.Stats.Failed,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertTestResult(suiteName string, res orchestration.TestResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      res.TestID,
		Classname: suiteName,
	}
	if res.Report == nil {
		tc.Failure = &JUnitFailure{
			Message: "no report produced",
			Type:    "error",
		}
		return tc
	}

	tc.Name = res.Report.TestCaseName
	tc.Time = res.Report.ExecutionTime

	if !res.Report.Metrics.Successful {
		msg := "call failed evaluation"
		if res.Report.Metrics.ErrorMessage != nil {
			msg = *res.Report.Metrics.ErrorMessage
		}
		tc.Failure = &JUnitFailure{
			Message: msg,
			Type:    "failure",
			Body: fmt.Sprintf("accuracy=%.1f empathy=%.1f response_time=%.1f",
				res.Report.Metrics.Accuracy, res.Report.Metrics.Empathy, res.Report.Metrics.ResponseTime),
		}
	}
	return tc
}

// WriteJUnitFile writes the suites to path as indented XML.
func WriteJUnitFile(path string, suites *JUnitTestSuites) error {
	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling junit xml: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing junit file: %w", err)
	}
	return nil
}
