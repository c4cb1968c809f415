/*

Mipepid finds short open reading frames (sORFs) in transcripts and
predicts if they are coding using a pretrained logistic regression on
4-mer frequencies.

The basic usage of mipepid looks like this:

	mipepid predict transcripts.fst results.csv

, this will find all the sORFs (ATG to stop codon, at most 303
nucleotides) in the three forward frames of every transcript and write
them with the predicted class and its probability.

Model files are created from JSON coefficients:

	mipepid model import coefficients.json model.bin

To see all the options run:

	mipepid --help-long

*/
package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/mipepid/orf"
	"bitbucket.org/Davydov/mipepid/sink"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("mipepid")
var formatter = logging.MustStringFormatter(`%{message}`)
var debugFormatter = logging.MustStringFormatter(`%{time:15:04:05.000} %{module} %{level:.4s} %{message}`)

// modules are all the logging modules.
var modules = []string{"mipepid", "pipeline", "checkpoint", "sink"}

// command-line options
var (
	// application
	app = kingpin.New("mipepid", "short ORF coding potential prediction").Version(version)

	// technical
	outLogF  = app.Flag("log", "write log to a file").Envar("MIPEPID_LOG").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Envar("MIPEPID_LOGLEVEL").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	cpuProfile = app.Flag("cpuprofile", "write cpu profile to file").String()

	// prediction
	predictCmd = app.Command("predict", "find and classify sORFs").Default()
	inputF     = predictCmd.Arg("input", "input FASTA file, '-' for standard input, .gz files are decompressed").Required().String()
	outputF    = predictCmd.Arg("output", "output file").Default("Mipepid_results.csv").String()
	modelF     = predictCmd.Flag("model", "model file (default: "+defaultModelName+" next to the executable)").Short('m').Envar("MIPEPID_MODEL").String()
	format     = predictCmd.Flag("format", "output format").Default("csv").Envar("MIPEPID_FORMAT").Enum(sink.Formats()...)

	k         = predictCmd.Flag("k", "k-mer size, must match the model").Default("4").Int()
	batch     = predictCmd.Flag("batch", "classify buffered sORFs once there are more than N").Default("1000").Int()
	maxLen    = predictCmd.Flag("maxlen", "maximum sORF length including the stop codon").Default(fmt.Sprint(orf.MaxShortLength)).Int()
	rawCounts = predictCmd.Flag("counts", "use k-mer counts instead of frequencies").Bool()
	starts    = predictCmd.Flag("start", "start codon (repeatable)").Default("ATG").Strings()
	stops     = predictCmd.Flag("stop", "stop codon (repeatable)").Default("TAA", "TAG", "TGA").Strings()
	nThreads  = predictCmd.Flag("nt", "number of goroutines classifying a batch").Default("1").Int()

	resume      = predictCmd.Flag("resume", "continue an interrupted run, appending to the output").Bool()
	checkpointF = predictCmd.Flag("checkpoint", "checkpoint database (default: <output>.ckpt when resuming)").String()
	jsonF       = predictCmd.Flag("json", "write json summary to a file").String()
	histF       = predictCmd.Flag("hist", "plot coding probability histogram to a file (png, svg, pdf)").String()

	// model files
	modelCmd = app.Command("model", "model file tools")

	inspectCmd = modelCmd.Command("inspect", "print model parameters")
	inspectF   = inspectCmd.Arg("model", "model file").Required().ExistingFile()

	importCmd = modelCmd.Command("import", "convert JSON coefficients to a model file")
	importIn  = importCmd.Arg("json", "JSON file with k, weights, bias and threshold").Required().ExistingFile()
	importOut = importCmd.Arg("model", "model file to create").Required().String()

	exportCmd = modelCmd.Command("export", "write model coefficients as JSON")
	exportIn  = exportCmd.Arg("model", "model file").Required().ExistingFile()
	exportOut = exportCmd.Arg("json", "JSON file to create, '-' for standard output").Default("-").String()
)

// loadEnv reads environment variables from MIPEPID_ENV or .env if the
// file exists.
func loadEnv() {
	fn := os.Getenv("MIPEPID_ENV")
	if fn == "" {
		fn = ".env"
	}
	if _, err := os.Stat(fn); err != nil {
		return
	}
	if err := godotenv.Load(fn); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading environment file:", err)
	}
}

// setupLogging configures logging backend and levels.
func setupLogging() (closer func()) {
	closer = func() {}
	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		closer = func() { f.Close() }
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	if level == logging.DEBUG {
		logging.SetFormatter(debugFormatter)
	} else {
		logging.SetFormatter(formatter)
	}
	for _, m := range modules {
		logging.SetLevel(level, m)
	}
	return
}

// logError logs the error, the stack trace recorded where the error
// happened is only shown in debug mode.
func logError(err error) {
	log.Critical(err.Error())
	log.Debug(xerrors.Sprint(err))
}

func main() {
	loadEnv()
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	closeLog := setupLogging()
	defer closeLog()

	log.Info(version)
	log.Info("Command line:", os.Args)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	var err error
	switch cmd {
	case predictCmd.FullCommand():
		var ps *predictSettings
		ps, err = newPredictSettings()
		if err == nil {
			err = ps.predict()
		}
	case inspectCmd.FullCommand():
		err = inspectModel(*inspectF, os.Stdout)
	case importCmd.FullCommand():
		err = importModel(*importIn, *importOut)
	case exportCmd.FullCommand():
		err = exportModel(*exportIn, *exportOut)
	}
	if err != nil {
		logError(err)
		pprof.StopCPUProfile()
		closeLog()
		os.Exit(1)
	}
}
