package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/icza/gowut/gwu"
	"github.com/udhos/lockfile"

	"github.com/udhos/iosauto/cdp"
	"github.com/udhos/iosauto/conf"
	"github.com/udhos/iosauto/dev"
	"github.com/udhos/iosauto/render"
	"github.com/udhos/iosauto/store"
)

const appName = "iosauto"
const appVersion = "0.1"

type app struct {
	configPath     string
	repositoryPath string // filesystem
	logPathPrefix  string
	repositoryLock lockfile.Lockfile
	logLock        lockfile.Lockfile

	table   *dev.DeviceTable
	options *conf.Options
	cases   cdp.SpecialCases
	job     dev.Job

	winHome gwu.Window

	repoPath string // www

	logger *log.Logger

	filterModel string
	filterID    string
	filterHost  string

	runLock sync.Mutex // one job run at a time

	filterTable *dev.FilterTable
}

func (a *app) logf(fmt string, v ...interface{}) {
	a.logger.Printf(fmt, v...)
}

func newApp() *app {
	app := &app{
		table:    dev.NewDeviceTable(),
		options:  conf.NewOptions(),
		logger:   log.New(os.Stdout, "", log.LstdFlags),
		repoPath: "repo", // www
	}

	return app
}

func defaultHomeDir() string {
	home := os.Getenv("IOSAUTO_HOME")
	if home == "" {
		home = "/var/iosauto"
	}
	return home
}

func defaultRegionName() string {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "sa-east-1"
	}
	return region
}

func addTrailingDot(path string) string {
	if !strings.HasSuffix(path, ".") {
		return path + "."
	}
	return path
}

func main() {
	os.Exit(run())
}

// run returns the process exit status.
func run() int {

	ios := newApp()

	maxMainConfigLoadSize := int64(10000000) // 10M

	var task string
	var devices string
	var commandsFile string
	var cdpFile string
	var disableStdoutLog bool
	var logMaxFiles int
	var logMaxSize int64
	var webListen string
	var s3region string

	defaultHome := defaultHomeDir()
	defaultConfig := filepath.Join(defaultHome, "etc", "iosauto.yaml")
	defaultRepo := filepath.Join(defaultHome, "repo")
	defaultLogPrefix := filepath.Join(defaultHome, "log", "iosauto.log.")

	flag.StringVar(&ios.configPath, "config", defaultConfig, "configuration file")
	flag.StringVar(&task, "task", "describe", "task: "+strings.Join(taskNames, "|"))
	flag.StringVar(&devices, "devices", "", "comma-separated device ids (default: all devices)")
	flag.StringVar(&commandsFile, "commands", "", "file with configuration commands for task send")
	flag.StringVar(&cdpFile, "cdpFile", "", "file with 'show cdp neighbors' output for task plan")
	flag.StringVar(&ios.repositoryPath, "repositoryPath", defaultRepo, "repository path")
	flag.StringVar(&ios.logPathPrefix, "logPathPrefix", defaultLogPrefix, "log path prefix")
	flag.StringVar(&webListen, "webListen", "", "address:port for web UI (empty: exit after the run)")
	flag.StringVar(&s3region, "s3region", defaultRegionName(), "AWS S3 region")
	flag.BoolVar(&disableStdoutLog, "disableStdoutLog", false, "disable logging to stdout")
	flag.IntVar(&logMaxFiles, "logMaxFiles", 20, "number of log files to keep")
	flag.Int64Var(&logMaxSize, "logMaxSize", 10000000, "size limit for log file (0: unlimited)")
	flag.Parse()

	if !validTask(task) {
		ios.logf("unknown task: '%s' (valid: %s)", task, strings.Join(taskNames, " "))
		return 1
	}

	store.Init(ios.logger, s3region)

	// load config before touching the repository or any device
	cfg, loadErr := conf.Load(ios.configPath, maxMainConfigLoadSize)
	if loadErr != nil {
		ios.logf("could not load config: %v", loadErr)
		return 1
	}
	ios.options.Set(&cfg.Options)
	ios.cases = cfg.SpecialCases

	ids := splitIDs(devices)

	switch task {
	case "plan":
		return taskPlan(ios, cdpFile, ids, os.Stdout)
	case "render":
		return taskRender(ios, cfg, ids, os.Stdout)
	}

	ios.logPathPrefix = addTrailingDot(ios.logPathPrefix)

	if store.S3Path(ios.logPathPrefix) {
		ios.logf("logging to Amazon S3 is not supported: %s", ios.logPathPrefix)
		return 1
	}

	if lockErr := exclusiveLock(ios); lockErr != nil {
		ios.logf("main: could not get exclusive lock: %v", lockErr)
		return 1
	}
	defer exclusiveUnlock(ios)

	fileLogger := newRunLog(ios.logPathPrefix, logMaxFiles, logMaxSize, task, ids)
	defer fileLogger.Close()

	// ios.logger currently is stdout
	if disableStdoutLog {
		ios.logger = log.New(fileLogger, "", log.LstdFlags)
		// logging to file only
	} else {
		ios.logger = log.New(io.MultiWriter(os.Stdout, fileLogger), "", log.LstdFlags)
		// logging both to stdout and file
	}

	ios.logf("%s %s starting", appName, appVersion)
	ios.logf("config: %s", ios.configPath)
	ios.logf("repository path: %s", ios.repositoryPath)

	report, taskErr := runTask(ios, cfg, task, commandsFile, ids)
	if taskErr != nil {
		ios.logf("main: %v", taskErr)
		return 1
	}

	status := printReport(os.Stdout, report)

	if webListen == "" {
		return status
	}

	serverName := fmt.Sprintf("%s application", appName)

	// Create GUI server
	server := gwu.NewServer(appName, webListen)
	server.SetText(serverName)

	repoPathFull := fmt.Sprintf("/%s/%s", appName, ios.repoPath)
	ios.logf("static dir: path=[%s] mapped to dir=[%s]", repoPathFull, ios.repositoryPath)
	server.AddStaticDir(ios.repoPath, ios.repositoryPath)

	buildHomeWin(ios, server)

	// Start GUI server
	server.SetLogger(ios.logger)
	if err := server.Start(); err != nil {
		ios.logf("iosauto main: could not start GUI server: %s", err)
		return 1
	}

	return status
}

var taskNames = []string{"describe", "config", "send", "status", "backup", "plan", "render"}

func validTask(task string) bool {
	for _, t := range taskNames {
		if t == task {
			return true
		}
	}
	return false
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// runTask loads the selected devices and runs the job on them. An error
// means the run stopped before any device was contacted.
func runTask(ios *app, cfg *conf.Config, task, commandsFile string, ids []string) (dev.Report, error) {
	ios.filterTable = dev.NewFilterTable(ios.logger)
	dev.RegisterModels(ios.logger, ios.table)
	ios.logf("models: %v", ios.table.ListModels())

	selected, selectErr := cfg.Select(ids)
	if selectErr != nil {
		return dev.Report{}, selectErr
	}

	job, jobErr := newJob(ios, task, commandsFile, selected)
	if jobErr != nil {
		return dev.Report{}, jobErr
	}
	ios.job = job

	if createErr := dev.CreateDevices(ios.table, ios.logger, selected); createErr != nil {
		return dev.Report{}, createErr
	}

	dev.UpdateLastSuccess(ios.table, ios.logger, ios.repositoryPath)

	opt := ios.options.Get()
	ios.logf("task: %s", task)
	ios.logf("maximum concurrency: %d", opt.MaxConcurrency)
	ios.logf("dry run: %v", opt.DryRun)

	var listIDs []string
	for _, d := range selected {
		listIDs = append(listIDs, d.ID)
	}

	return runJob(ios, listIDs), nil
}

// runJob serializes runs from the command line and from the web UI.
func runJob(ios *app, ids []string) dev.Report {
	ios.runLock.Lock()
	defer ios.runLock.Unlock()
	return dev.RunIDs(ios.table, ids, ios.logger, ios.options.Get(), ios.job, ios.repositoryPath)
}

// newJob builds the job for a task. Task config renders every selected
// device here, so template errors stop the run before any login.
func newJob(ios *app, task, commandsFile string, selected []conf.DevConfig) (dev.Job, error) {
	switch task {
	case "describe":
		return &dev.DescribeJob{Cases: ios.cases}, nil
	case "config":
		lines, renderErr := renderConfigs(ios.options.Get(), selected)
		if renderErr != nil {
			return nil, fmt.Errorf("newJob: %v", renderErr)
		}
		return &dev.ConfigJob{Lines: lines}, nil
	case "send":
		if commandsFile == "" {
			return nil, fmt.Errorf("newJob: task send requires -commands")
		}
		f, openErr := os.Open(commandsFile)
		if openErr != nil {
			return nil, fmt.Errorf("newJob: %v", openErr)
		}
		defer f.Close()
		commands, readErr := readCommands(f)
		if readErr != nil {
			return nil, fmt.Errorf("newJob: %s: %v", commandsFile, readErr)
		}
		if len(commands) < 1 {
			return nil, fmt.Errorf("newJob: %s: no commands", commandsFile)
		}
		return &dev.SendJob{Commands: commands}, nil
	case "status":
		return &dev.StatusJob{}, nil
	case "backup":
		return &dev.BackupJob{Repository: ios.repositoryPath, Filters: ios.filterTable}, nil
	}
	return nil, fmt.Errorf("newJob: task '%s' does not run on devices", task)
}

// readCommands reads one configuration command per line. Blank lines and
// lines starting with '#' are skipped.
func readCommands(r io.Reader) ([]string, error) {
	var commands []string
	reader := bufio.NewReader(r)
	for {
		text, inErr := reader.ReadString('\n')
		if inErr != nil && inErr != io.EOF {
			return nil, fmt.Errorf("readCommands: %v", inErr)
		}

		cmd := strings.TrimRight(text, " \t\r\n")
		trim := strings.TrimSpace(cmd)
		if trim != "" && !strings.HasPrefix(trim, "#") {
			commands = append(commands, cmd)
		}

		if inErr == io.EOF {
			break
		}
	}
	return commands, nil
}

// printReport writes job outputs followed by the failure summary, and returns the exit status.
func printReport(w io.Writer, report dev.Report) int {
	for _, r := range report.Results {
		if r.Output == "" {
			continue
		}
		fmt.Fprintf(w, "=== %s\n%s", r.DevID, r.Output)
		if !strings.HasSuffix(r.Output, "\n") {
			fmt.Fprintln(w)
		}
	}

	failed := report.Failed()

	fmt.Fprintf(w, "devices: %d success: %d failure: %d\n", len(report.Results), report.Success, report.Failure)
	for _, r := range failed {
		fmt.Fprintf(w, "FAILED %s (%s): code=%d %s\n", r.DevID, r.DevHostPort, r.Code, r.Msg)
	}

	if len(failed) > 0 {
		return 1
	}
	return 0
}

// taskPlan prints the description commands for CDP output read from a file.
// The first device id picks the special cases applied.
func taskPlan(ios *app, cdpFile string, ids []string, w io.Writer) int {
	if cdpFile == "" {
		ios.logf("taskPlan: task plan requires -cdpFile")
		return 1
	}

	opt := ios.options.Get()

	b, readErr := store.FileRead(cdpFile, opt.MaxConfigLoadSize)
	if readErr != nil {
		ios.logf("taskPlan: %v", readErr)
		return 1
	}

	var device string
	if len(ids) > 0 {
		device = ids[0]
	}

	commands, neighbors, skipped := cdp.Plan(device, string(b), opt.CdpDetail, ios.cases)
	if len(skipped) > 0 {
		ios.logf("taskPlan: skipped %d row(s): %q", len(skipped), skipped)
	}
	ios.logf("taskPlan: device=%s neighbors=%d commands=%d", device, len(neighbors), len(commands))

	for _, c := range commands {
		fmt.Fprintln(w, c)
	}

	return 0
}

// taskRender prints the rendered configuration of the selected devices.
func taskRender(ios *app, cfg *conf.Config, ids []string, w io.Writer) int {
	selected, selectErr := cfg.Select(ids)
	if selectErr != nil {
		ios.logf("taskRender: %v", selectErr)
		return 1
	}

	opt := ios.options.Get()
	status := 0

	for i := range selected {
		d := &selected[i]
		lines, renderErr := renderDevice(opt, d)
		if renderErr != nil {
			ios.logf("taskRender: %v", renderErr)
			status = 1
			continue
		}
		fmt.Fprintf(w, "=== %s\n", d.ID)
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}

	return status
}

func renderDevice(opt *conf.AppConfig, d *conf.DevConfig) ([]string, error) {
	tmpl, vars := d.TemplateFiles(opt)
	config, renderErr := render.File(tmpl, vars)
	if renderErr != nil {
		return nil, fmt.Errorf("%s: template=%s vars=%s: %v", d.ID, tmpl, vars, renderErr)
	}
	return render.Lines(config), nil
}

// renderConfigs returns the rendered lines keyed by device id. The first
// failure aborts.
func renderConfigs(opt *conf.AppConfig, selected []conf.DevConfig) (map[string][]string, error) {
	configs := map[string][]string{}
	for i := range selected {
		lines, renderErr := renderDevice(opt, &selected[i])
		if renderErr != nil {
			return nil, renderErr
		}
		configs[selected[i].ID] = lines
	}
	return configs, nil
}

// lockPath returns the absolute path required by lockfile.
func lockPath(path string) string {
	abs, absErr := filepath.Abs(path)
	if absErr != nil {
		return path
	}
	return abs
}

func exclusiveLock(ios *app) error {
	repositoryLockPath := lockPath(filepath.Join(ios.repositoryPath, "lock"))
	if !store.S3Path(ios.repositoryPath) {
		if mkdirErr := store.MkDir(ios.repositoryPath); mkdirErr != nil {
			return fmt.Errorf("exclusiveLock: repository: %v", mkdirErr)
		}
		var newErr error
		if ios.repositoryLock, newErr = lockfile.New(repositoryLockPath); newErr != nil {
			return fmt.Errorf("exclusiveLock: new failure: '%s': %v", repositoryLockPath, newErr)
		}
		if err := ios.repositoryLock.TryLock(); err != nil {
			return fmt.Errorf("exclusiveLock: lock failure: '%s': %v", repositoryLockPath, err)
		}
	}

	logLockPath := lockPath(fmt.Sprintf("%slock", ios.logPathPrefix))
	if mkdirErr := os.MkdirAll(filepath.Dir(logLockPath), 0750); mkdirErr != nil {
		unlockRepository(ios)
		return fmt.Errorf("exclusiveLock: log dir: %v", mkdirErr)
	}
	var newErr error
	if ios.logLock, newErr = lockfile.New(logLockPath); newErr != nil {
		unlockRepository(ios)
		return fmt.Errorf("exclusiveLock: new failure: '%s': %v", logLockPath, newErr)
	}
	if err := ios.logLock.TryLock(); err != nil {
		unlockRepository(ios)
		return fmt.Errorf("exclusiveLock: lock failure: '%s': %v", logLockPath, err)
	}

	return nil
}

func unlockRepository(ios *app) {
	repositoryLockPath := lockPath(filepath.Join(ios.repositoryPath, "lock"))
	if !store.S3Path(ios.repositoryPath) {
		if err := ios.repositoryLock.Unlock(); err != nil {
			ios.logger.Printf("exclusiveUnlock: '%s': %v", repositoryLockPath, err)
		}
	}
}

func exclusiveUnlock(ios *app) {
	unlockRepository(ios)

	logLockPath := lockPath(fmt.Sprintf("%slock", ios.logPathPrefix))
	if err := ios.logLock.Unlock(); err != nil {
		ios.logger.Printf("exclusiveUnlock: '%s': %v", logLockPath, err)
	}
}
