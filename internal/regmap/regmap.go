// internal/regmap/regmap.go

// Package regmap defines the register layout shared by every actuator
// controller board on the fieldbus. The map is a closed enumeration:
// offsets are fixed at compile time and match the board firmware.
package regmap

// Identity block.
const (
	ScarabID1 uint16 = 0
)

// Telemetry block (100-117).
const (
	BridgeCurrent         uint16 = 100
	BattVoltage           uint16 = 101
	MaxBattVoltage        uint16 = 102
	MinBattVoltage        uint16 = 103
	BoardTemperature      uint16 = 104
	PositionEncoderCounts uint16 = 117
)

// Motor control block (200-220).
const (
	MotorSetpoint          uint16 = 200
	MotorSpeed             uint16 = 201
	MotorAccel             uint16 = 202
	CurrentLimitInward     uint16 = 203
	CurrentLimitOutward    uint16 = 204
	ExtensionLimitInward   uint16 = 205
	ExtensionLimitOutward  uint16 = 206
	PositionEncoderScaling uint16 = 207
	Estop                  uint16 = 208
	ResetEstop             uint16 = 209
	MotorPWMFreqMSW        uint16 = 210
	MotorPWMFreqLSW        uint16 = 211
	MotorPWMDutyMSW        uint16 = 212
	MotorPWMDutyLSW        uint16 = 213
	GotoPosition           uint16 = 218
	GotoSpeedSetpoint      uint16 = 219
	ForceCalibrateEncoder  uint16 = 220
)

// Status and fault counter block (299-311).
const (
	Extension             uint16 = 299
	EstopState            uint16 = 300
	CurrentTripsInward    uint16 = 301
	CurrentTripsOutward   uint16 = 302
	InwardEndstopState    uint16 = 303
	OutwardEndstopState   uint16 = 304
	InwardEndstopCount    uint16 = 305
	OutwardEndstopCount   uint16 = 306
	VoltageTrips          uint16 = 307
	HeartbeatExpiries     uint16 = 308
	ExtensionTripsInward  uint16 = 309
	ExtensionTripsOutward uint16 = 310
	EncoderFailTrips      uint16 = 311
)

// Timeout parameter block (9008-9009).
const (
	HeartbeatTimeout   uint16 = 9008
	EncoderFailTimeout uint16 = 9009
)

// MaxOffset is one past the highest valid register offset.
const MaxOffset uint16 = 9010

// Magic values the firmware requires for protected operations.
const (
	ResetMagic     uint16 = 0x5050 // written to ResetEstop to clear an emergency stop
	CalibrateMagic uint16 = 0xA0A0 // written to ForceCalibrateEncoder to zero the encoder
)

// EstopEngage is the value written to Estop to command a stop.
const EstopEngage uint16 = 1

// Span is an inclusive, contiguous register range read in one request.
type Span struct {
	Start uint16
	End   uint16
}

// HighPriority is the cheap extension/endstop/estop-state block read for
// every board on every scheduler tick.
var HighPriority = Span{Extension, OutwardEndstopState}

// FullRead lists the larger identity/telemetry/config/counter blocks read
// for one board per minor sweep.
var FullRead = []Span{
	{ScarabID1, ScarabID1},
	{BridgeCurrent, BoardTemperature},
	{MotorSetpoint, PositionEncoderScaling},
	{InwardEndstopCount, EncoderFailTrips},
}
