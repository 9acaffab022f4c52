package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
)

type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

const (
	logBatchSize     = 50
	logFlushInterval = 5 * time.Second
)

// logsAPI is the subset of the CloudWatch Logs client the logger uses.
type logsAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// logSink batches events from every logger derived from the same root.
type logSink struct {
	client    logsAPI
	logGroup  string
	logStream string
	events    chan types.InputLogEvent
}

// Logger implements ports.Logger using AWS CloudWatch Logs
type Logger struct {
	sink       *logSink
	baseFields map[string]interface{}
	level      LogLevel
}

// NewLogger creates a CloudWatch logger and makes sure its group and
// stream exist.
func NewLogger(ctx context.Context, cfg *config.Config) (*Logger, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.Observability.CloudWatchRegion)
	if err != nil {
		return nil, err
	}
	return newLogger(ctx, cloudwatchlogs.NewFromConfig(awsCfg), cfg)
}

func newLogger(ctx context.Context, client logsAPI, cfg *config.Config) (*Logger, error) {
	hostname, _ := os.Hostname()

	sink := &logSink{
		client:    client,
		logGroup:  cfg.Observability.CloudWatchLogGroup,
		logStream: fmt.Sprintf("%s-%s-%s-%d", cfg.ServiceName, cfg.Environment, hostname, time.Now().Unix()),
		events:    make(chan types.InputLogEvent, 1000),
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := sink.ensureLogGroup(initCtx); err != nil {
		return nil, fmt.Errorf("failed to ensure log group: %w", err)
	}
	if err := sink.ensureLogStream(initCtx); err != nil {
		return nil, fmt.Errorf("failed to ensure log stream: %w", err)
	}

	go sink.run()

	return &Logger{
		sink:       sink,
		baseFields: map[string]interface{}{},
		level:      parseLogLevel(cfg.LogLevel),
	}, nil
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DebugLevel, "DEBUG", msg, fields) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(InfoLevel, "INFO", msg, fields) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WarnLevel, "WARN", msg, fields) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ErrorLevel, "ERROR", msg, fields) }

// WithFields returns a new logger with additional default fields
func (l *Logger) WithFields(fields map[string]interface{}) ports.Logger {
	newFields := make(map[string]interface{}, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{sink: l.sink, baseFields: newFields, level: l.level}
}

func (l *Logger) log(level LogLevel, name, msg string, fields []interface{}) {
	if level < l.level {
		return
	}

	data, err := json.Marshal(l.buildLogEntry(name, msg, fieldsToMap(fields...)))
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":%q,"message":%q,"error":"failed to marshal log"}`, name, msg))
	}

	event := types.InputLogEvent{
		Message:   aws.String(string(data)),
		Timestamp: aws.Int64(time.Now().UnixMilli()),
	}

	select {
	case l.sink.events <- event:
	default:
		// buffer full, drop
	}
}

func (l *Logger) buildLogEntry(level, msg string, fields map[string]interface{}) map[string]interface{} {
	entry := make(map[string]interface{}, len(l.baseFields)+len(fields)+3)
	for k, v := range l.baseFields {
		entry[k] = v
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			entry[k] = err.Error()
			entry[k+"_type"] = fmt.Sprintf("%T", err)
			continue
		}
		entry[k] = v
	}

	entry["level"] = level
	entry["message"] = msg
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	return entry
}

func (s *logSink) run() {
	ticker := time.NewTicker(logFlushInterval)
	defer ticker.Stop()

	batch := make([]types.InputLogEvent, 0, logBatchSize)
	for {
		select {
		case event := <-s.events:
			batch = append(batch, event)
			if len(batch) >= logBatchSize {
				s.flush(batch)
				batch = make([]types.InputLogEvent, 0, logBatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = make([]types.InputLogEvent, 0, logBatchSize)
			}
		}
	}
}

func (s *logSink) flush(batch []types.InputLogEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(s.logGroup),
		LogStreamName: aws.String(s.logStream),
		LogEvents:     batch,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch: failed to put %d log events: %v\n", len(batch), err)
	}
}

// ensureLogGroup creates the log group if it doesn't exist
func (s *logSink) ensureLogGroup(ctx context.Context) error {
	_, err := s.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(s.logGroup),
	})

	var alreadyExists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log group: %w", err)
	}
	return nil
}

// ensureLogStream creates the log stream if it doesn't exist
func (s *logSink) ensureLogStream(ctx context.Context) error {
	_, err := s.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(s.logGroup),
		LogStreamName: aws.String(s.logStream),
	})

	var alreadyExists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log stream: %w", err)
	}
	return nil
}

func parseLogLevel(level string) LogLevel {
	switch level {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// fieldsToMap converts variadic key-value pairs to a map
func fieldsToMap(fields ...interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(fields)/2)

	if len(fields)%2 != 0 {
		fields = append(fields, "")
	}

	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		result[key] = fields[i+1]
	}

	return result
}
