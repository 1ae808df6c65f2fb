package onnx

// EnvSharedLibraryPath is consulted if the path to the onnxruntime
// library is not set explicitly.
const EnvSharedLibraryPath = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

type Device string

const (
	DeviceUndefined = Device("")
	DeviceCPU       = Device("cpu")
	DeviceCUDA      = Device("cuda")
)

type Options struct {
	Device            Device
	SharedLibraryPath string
}
