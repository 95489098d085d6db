package dvid

import (
	"fmt"
	"regexp"

	. "github.com/janelia-flyem/go/gocheck"
)

// recordLogger keeps formatted messages prefixed by severity.
type recordLogger struct {
	msgs []string
}

func (r *recordLogger) record(sev, format string, args []interface{}) {
	r.msgs = append(r.msgs, sev+" "+fmt.Sprintf(format, args...))
}

func (r *recordLogger) Debugf(format string, args ...interface{})    { r.record("D", format, args) }
func (r *recordLogger) Infof(format string, args ...interface{})     { r.record("I", format, args) }
func (r *recordLogger) Warningf(format string, args ...interface{})  { r.record("W", format, args) }
func (r *recordLogger) Errorf(format string, args ...interface{})    { r.record("E", format, args) }
func (r *recordLogger) Criticalf(format string, args ...interface{}) { r.record("C", format, args) }
func (r *recordLogger) Shutdown()                                    {}

func withRecorder(m ModeFlag, fn func(*recordLogger)) {
	saved, savedMode, savedVerbose := logger, LogMode(), Verbose
	defer func() {
		logger, Verbose = saved, savedVerbose
		SetLogMode(savedMode)
	}()
	rec := &recordLogger{}
	logger, Verbose = rec, false
	SetLogMode(m)
	fn(rec)
}

func (s *DataSuite) TestLogLevels(c *C) {
	withRecorder(WarningMode, func(rec *recordLogger) {
		Debugf("d\n")
		Infof("i\n")
		Warningf("w\n")
		Errorf("e\n")
		Criticalf("c\n")
		c.Assert(rec.msgs, DeepEquals, []string{"W w\n", "E e\n", "C c\n"})
	})

	withRecorder(InfoMode, func(rec *recordLogger) {
		Debugf("quiet\n")
		Verbose = true
		Debugf("loud\n")
		c.Assert(rec.msgs, DeepEquals, []string{"D loud\n"})
	})

	withRecorder(SilentMode, func(rec *recordLogger) {
		Criticalf("nothing\n")
		c.Assert(rec.msgs, HasLen, 0)
	})
}

func (s *DataSuite) TestTimeLog(c *C) {
	withRecorder(InfoMode, func(rec *recordLogger) {
		tlog := NewTimeLog()
		tlog.Infof("Read %d blocks\n", 6)
		tlog.Debugf("hidden")
		c.Assert(rec.msgs, HasLen, 1)
		c.Assert(regexp.MustCompile(`^I Read 6 blocks: \S+\n$`).MatchString(rec.msgs[0]), Equals, true, Commentf("%q", rec.msgs[0]))
	})
}

func (s *DataSuite) TestParseLogMode(c *C) {
	for name, expected := range map[string]ModeFlag{
		"":        InfoMode,
		"debug":   DebugMode,
		"WARNING": WarningMode,
		"silent":  SilentMode,
	} {
		m, err := ParseLogMode(name)
		c.Assert(err, IsNil)
		c.Assert(m, Equals, expected)
	}
	_, err := ParseLogMode("loud")
	c.Assert(err, ErrorMatches, "unknown log level.*")
	c.Assert(ErrorMode.String(), Equals, "error")

	var lc *LogConfig
	c.Assert(lc.Validate(), IsNil)
	c.Assert((&LogConfig{Level: "verbose"}).Validate(), NotNil)
}
