package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID).
	FieldRequestID = "request_id"

	// FieldUploadID is the diagnosis record ID assigned by the upload
	// pipeline.
	FieldUploadID = "upload_id"

	// FieldComponent is the component/module name.
	FieldComponent = "component"

	// FieldDisease is the disease label being processed.
	FieldDisease = "disease"

	// FieldStage is the upload pipeline stage name.
	FieldStage = "stage"
)

// Standard metric fields, attached at the log call site.
const (
	// FieldDurationMs is the execution duration in milliseconds.
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field.
	FieldCount = "count"

	// FieldSize is the data size in bytes.
	FieldSize = "size"

	// FieldStatus is the operation status.
	FieldStatus = "status"
)
