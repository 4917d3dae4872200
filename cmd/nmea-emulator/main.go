package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Bucknalla/nmea-gps-emulator/gps"
	"github.com/Bucknalla/nmea-gps-emulator/sink"
	"github.com/Bucknalla/nmea-gps-emulator/web"
)

// Version information - populated at build time via ldflags
var (
	Version   = "dev"     // Will be set to git tag if available, otherwise "dev"
	Commit    = "unknown" // Will be set to git commit hash
	BuildDate = "unknown" // Will be set to build timestamp
)

// options are the flags that are not part of gps.Config
type options struct {
	showVersion     bool
	listPorts       bool
	configPath      string
	maxClients      int
	mqttRetain      bool
	mqttPerSentence bool
	staticDir       string
}

func defineFlags(fs *flag.FlagSet, config *gps.Config, opts *options) {
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information and exit")
	fs.BoolVar(&opts.listPorts, "list-ports", false, "List serial ports and exit")
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file; flags given on the command line override it")
	fs.IntVar(&opts.maxClients, "tcp-max-clients", sink.DefaultMaxClients, "Maximum simultaneous TCP clients")
	fs.BoolVar(&opts.mqttRetain, "mqtt-retain", false, "Publish MQTT messages with the retain flag")
	fs.BoolVar(&opts.mqttPerSentence, "mqtt-per-sentence", false, "Publish each sentence on <topic>/<type> instead of whole batches")
	fs.StringVar(&opts.staticDir, "static", "", "Directory served at / by the HTTP server")

	fs.Float64Var(&config.Latitude, "lat", config.Latitude, "Initial latitude (decimal degrees)")
	fs.Float64Var(&config.Longitude, "lon", config.Longitude, "Initial longitude (decimal degrees)")
	fs.Float64Var(&config.Altitude, "altitude", config.Altitude, "Altitude above mean sea level in meters")
	fs.Float64Var(&config.Speed, "speed", config.Speed, "Speed over ground in knots (0-999)")
	fs.Float64Var(&config.Course, "course", config.Course, "Course over ground in degrees (0-359.9)")
	fs.StringVar(&config.Talker, "talker", config.Talker, "Two letter talker ID (GP, GN, GL, ...)")
	fs.Int64Var(&config.Seed, "seed", config.Seed, "Seed for the satellite constellation")
	fs.IntVar(&config.Satellites.Initial, "satellites", config.Satellites.Initial, "Satellites visible at start")
	fs.IntVar(&config.Satellites.MaxVisible, "max-satellites", config.Satellites.MaxVisible, "Maximum satellites visible at once (0-32)")
	fs.IntVar(&config.Satellites.MinUsed, "min-used", config.Satellites.MinUsed, "Minimum satellites used in the fix while locked (0-12)")
	fs.Float64Var(&config.HDOP, "hdop", config.HDOP, "Horizontal dilution of precision")
	fs.Float64Var(&config.PDOP, "pdop", config.PDOP, "Position dilution of precision")
	fs.Float64Var(&config.VDOP, "vdop", config.VDOP, "Vertical dilution of precision")
	fs.Float64Var(&config.GeoidSeparation, "geoid", config.GeoidSeparation, "Geoid separation in meters")
	fs.BoolVar(&config.Differential, "dgps", config.Differential, "Report a differential fix")
	fs.DurationVar(&config.TimeToLock, "lock-time", config.TimeToLock, "Time to GPS lock simulation")
	fs.DurationVar(&config.OutputRate, "rate", config.OutputRate, "NMEA output rate")
	fs.BoolVar(&config.WallClock, "wall-clock", config.WallClock, "Stamp fixes with the host clock instead of simulated time")
	fs.BoolVar(&config.VTG, "vtg", config.VTG, "Also emit VTG sentences")
	fs.DurationVar(&config.Duration, "duration", config.Duration, "How long to run the simulation (e.g., 30s, 5m, 1h). Default is indefinite")
	fs.BoolVar(&config.GPXEnabled, "gpx", config.GPXEnabled, "Record a GPX track with a timestamp-based filename")
	fs.StringVar(&config.GPXFile, "gpx-file", config.GPXFile, "Record the GPX track to this file")
	fs.StringVar(&config.ReplayFile, "replay", config.ReplayFile, "GPX file to replay instead of simulating (e.g., track.gpx)")
	fs.Float64Var(&config.ReplaySpeed, "replay-speed", config.ReplaySpeed, "Replay speed multiplier (1.0=real-time, 2.0=2x speed, 0.5=half speed)")
	fs.BoolVar(&config.ReplayLoop, "replay-loop", config.ReplayLoop, "Loop the GPX replay continuously (default: stop after one pass)")
	fs.StringVar(&config.SerialPort, "serial", config.SerialPort, "Serial port for NMEA output (e.g., /dev/ttyUSB0, COM1)")
	fs.IntVar(&config.BaudRate, "baud", config.BaudRate, "Serial port baud rate")
	fs.StringVar(&config.TCPListen, "tcp", config.TCPListen, "Serve NMEA to TCP clients on this address (e.g., "+sink.DefaultTCPAddr+")")
	fs.StringVar(&config.StreamNetwork, "stream-net", config.StreamNetwork, "Network for -stream: tcp or udp")
	fs.StringVar(&config.StreamAddr, "stream", config.StreamAddr, "Push NMEA to a remote host:port")
	fs.StringVar(&config.MQTTBroker, "mqtt", config.MQTTBroker, "Publish NMEA to this MQTT broker (e.g., tcp://localhost:1883)")
	fs.StringVar(&config.MQTTTopic, "mqtt-topic", config.MQTTTopic, "MQTT topic")
	fs.DurationVar(&config.SentenceDelay, "sentence-delay", config.SentenceDelay, "Pause between sentences of one batch (e.g., 50ms)")
	fs.StringVar(&config.HTTPListen, "http", config.HTTPListen, "Serve the control API on this address (e.g., :8080)")
	fs.BoolVar(&config.Quiet, "quiet", config.Quiet, "Suppress info messages (only output NMEA data)")
	fs.Var(qosValue{&config.MQTTQoS}, "mqtt-qos", "MQTT QoS (0-2)")
}

// qosValue is a flag.Value for an MQTT quality of service level
type qosValue struct{ qos *byte }

func (q qosValue) String() string {
	if q.qos == nil {
		return "0"
	}
	return strconv.Itoa(int(*q.qos))
}

func (q qosValue) Set(s string) error {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return err
	}
	if v > 2 {
		return fmt.Errorf("%w: %d", gps.ErrInvalidQoS, v)
	}
	*q.qos = byte(v)
	return nil
}

// parseArgs builds the configuration from defaults, then the -config file,
// then the flags given on the command line
func parseArgs(args []string, stderr io.Writer) (gps.Config, options, error) {
	config := gps.DefaultConfig()
	var opts options

	fs := flag.NewFlagSet("nmea-emulator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	defineFlags(fs, &config, &opts)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nmea-emulator [options]\n")
		fmt.Fprintf(stderr, "\nNMEA 0183 GPS receiver emulator\n")
		fmt.Fprintf(stderr, "Emits GGA, GSA, GSV, GLL, RMC, HDT and ZDA sentences for a simulated vessel.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return gps.Config{}, opts, err
	}
	if fs.NArg() > 0 {
		return gps.Config{}, opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if opts.configPath != "" {
		fileConfig, err := gps.LoadConfig(opts.configPath)
		if err != nil {
			return gps.Config{}, opts, fmt.Errorf("config %s: %w", opts.configPath, err)
		}

		// replay the explicit flags on top of the file
		var ignored options
		overlay := flag.NewFlagSet("overlay", flag.ContinueOnError)
		overlay.SetOutput(io.Discard)
		defineFlags(overlay, &fileConfig, &ignored)
		var setErr error
		fs.Visit(func(f *flag.Flag) {
			if err := overlay.Set(f.Name, f.Value.String()); err != nil && setErr == nil {
				setErr = err
			}
		})
		if setErr != nil {
			return gps.Config{}, opts, setErr
		}
		config = fileConfig
	}

	if config.GPXEnabled && config.GPXFile == "" {
		config.GPXFile = fmt.Sprintf("%s.gpx", time.Now().Format("20060102_150405"))
	}
	if config.GPXFile != "" {
		config.GPXEnabled = true
	}

	if err := config.Validate(); err != nil {
		return gps.Config{}, opts, err
	}
	return config, opts, nil
}

// openSinks opens every configured output. stdout is used when no other
// output is configured.
func openSinks(config gps.Config, opts options, stdout io.Writer) (io.Writer, []io.Closer, error) {
	var writers []io.Writer
	var closers []io.Closer

	fail := func(err error) (io.Writer, []io.Closer, error) {
		for _, c := range closers {
			c.Close()
		}
		return nil, nil, err
	}

	if config.SerialPort != "" {
		port, err := sink.OpenSerial(config.SerialPort, config.BaudRate)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, port)
		closers = append(closers, port)
	}

	if config.TCPListen != "" {
		srv, err := sink.ListenTCP(config.TCPListen, opts.maxClients)
		if err != nil {
			return fail(fmt.Errorf("failed to listen on %s: %w", config.TCPListen, err))
		}
		writers = append(writers, srv)
		closers = append(closers, srv)
	}

	if config.StreamAddr != "" {
		stream, err := sink.DialStream(config.StreamNetwork, config.StreamAddr)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, stream)
		closers = append(closers, stream)
	}

	if config.MQTTBroker != "" {
		pub, err := sink.DialMQTT(sink.MQTTConfig{
			Broker:      config.MQTTBroker,
			Topic:       config.MQTTTopic,
			QoS:         config.MQTTQoS,
			Retain:      opts.mqttRetain,
			PerSentence: opts.mqttPerSentence,
		})
		if err != nil {
			return fail(err)
		}
		writers = append(writers, pub)
		closers = append(closers, pub)
	}

	if len(writers) == 0 {
		writers = append(writers, stdout)
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = sink.Multi(writers...)
	}
	return sink.Paced(out, config.SentenceDelay), closers, nil
}

func printBanner(w io.Writer, config gps.Config) {
	if config.ReplayFile != "" {
		fmt.Fprintf(w, "Starting GPS replay from: %s\n", config.ReplayFile)
		fmt.Fprintf(w, "Replay speed: %.1fx\n", config.ReplaySpeed)
	} else {
		fmt.Fprintf(w, "Starting NMEA emulator...\n")
		fmt.Fprintf(w, "Initial position: %.6f, %.6f, %.1fm\n", config.Latitude, config.Longitude, config.Altitude)
		fmt.Fprintf(w, "Speed: %.1f knots\n", config.Speed)
		fmt.Fprintf(w, "Course: %.1f degrees\n", config.Course)
	}
	fmt.Fprintf(w, "Talker: %s\n", config.Talker)
	fmt.Fprintf(w, "Satellites: %d visible (max %d)\n", config.Satellites.Initial, config.Satellites.MaxVisible)
	fmt.Fprintf(w, "Time to lock: %v\n", config.TimeToLock)
	fmt.Fprintf(w, "Output rate: %v\n", config.OutputRate)

	outputs := 0
	if config.SerialPort != "" {
		fmt.Fprintf(w, "NMEA output: %s (%d baud)\n", config.SerialPort, config.BaudRate)
		outputs++
	}
	if config.TCPListen != "" {
		fmt.Fprintf(w, "NMEA output: TCP server on %s\n", config.TCPListen)
		outputs++
	}
	if config.StreamAddr != "" {
		fmt.Fprintf(w, "NMEA output: %s stream to %s\n", config.StreamNetwork, config.StreamAddr)
		outputs++
	}
	if config.MQTTBroker != "" {
		fmt.Fprintf(w, "NMEA output: MQTT %s topic %s\n", config.MQTTBroker, config.MQTTTopic)
		outputs++
	}
	if outputs == 0 {
		fmt.Fprintf(w, "NMEA output: stdout\n")
	}
	if config.GPXEnabled {
		fmt.Fprintf(w, "GPX output: %s\n", config.GPXFile)
	}
	if config.HTTPListen != "" {
		fmt.Fprintf(w, "Control API: http://%s/api/status\n", config.HTTPListen)
	}
	fmt.Fprintf(w, "\nPress Ctrl+C to stop\n\n")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	config, opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if opts.showVersion {
		if Version != "dev" {
			fmt.Fprintf(stdout, "v%s\n", Version)
		} else {
			fmt.Fprintf(stdout, "%s\n", Commit)
		}
		return 0
	}

	if opts.listPorts {
		ports, err := sink.SerialPorts()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		for _, p := range ports {
			fmt.Fprintln(stdout, p)
		}
		return 0
	}

	if config.Quiet {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(stderr)
	}

	out, closers, err := openSinks(config, opts, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	if !config.Quiet {
		printBanner(stderr, config)
	}

	simulator, err := gps.NewSimulator(config)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create GPS simulator: %v\n", err)
		return 1
	}
	simulator.SetNMEAWriter(out)

	if err := simulator.Start(); err != nil {
		fmt.Fprintf(stderr, "Failed to start GPS simulator: %v\n", err)
		return 1
	}

	if config.HTTPListen != "" {
		server := web.NewServer(config, out)
		server.StaticDir = opts.staticDir
		server.Attach(simulator)
		// the server owns the simulator from here and stops it on shutdown
		if err := server.ListenAndServe(ctx, config.HTTPListen); err != nil {
			simulator.Stop()
			fmt.Fprintf(stderr, "HTTP server: %v\n", err)
			return 1
		}
		return 0
	}

	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	for simulator.IsRunning() {
		select {
		case <-ctx.Done():
			simulator.Stop()
		case <-poll.C:
		}
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
