/*
This is the main application for the iosauto tool.

Iosauto automates Cisco IOS devices over SSH or telnet: it sets interface
descriptions from CDP neighbors, pushes templated or raw configuration,
reports interface status and backs up the running configuration.

Usage:

	iosauto [flag]

Flags are:

	-cdpFile string
	      file with 'show cdp neighbors' output for task plan
	-commands string
	      file with configuration commands for task send
	-config string
	      configuration file
	-devices string
	      comma-separated device ids (default: all devices)
	-disableStdoutLog
	      disable logging to stdout
	-logMaxFiles int
	      number of log files to keep
	-logMaxSize int
	      size limit for log file (0: unlimited)
	-logPathPrefix string
	      log path prefix
	-repositoryPath string
	      repository path
	-s3region string
	      AWS S3 region
	-task string
	      task: describe|config|send|status|backup|plan|render
	-webListen string
	      address:port for web UI (empty: exit after the run)

Tasks:

	describe  show cdp neighbors, then set one description per neighbor
	config    render the device template with its YAML vars and push it
	send      push the commands read from -commands
	status    show interface state with last input and last output
	backup    save the running configuration when it changed
	plan      print the describe commands for CDP output read from -cdpFile
	render    print the rendered configuration, without connecting

The exit status is 1 when the configuration cannot be loaded or when any
device fails. Devices are processed one after another unless the
configuration sets maxconcurrency.

By default, iosauto looks for these paths under $IOSAUTO_HOME:

	etc/iosauto.yaml  (can be overridden with -config)
	log/iosauto.log.  (can be overridden with -logPathPrefix)
	repo              (can be overridden with -repositoryPath)

If $IOSAUTO_HOME is not defined, iosauto home defaults to /var/iosauto.

Each run starts a new numbered log file whose first line names the task
and the devices. A run that exceeds -logMaxSize continues in the next file.
*/
package main
