package schema

import "github.com/argus-sat/splat/format"

// ArgusTables is the authoritative flight table set for the Argus link: seven
// subsystems, the nominal/storage/HAL/payload telemetry reports, the flight
// command list, and the file-transfer command vocabulary.
//
// MaxPacketSize is 230 bytes, sized so TM_HEARTBEAT fits one packet.
func ArgusTables() Tables {
	return Tables{
		MaxPacketSize: 230,

		Subsystems: map[string]uint8{
			"CDH":        0,
			"EPS":        1,
			"ADCS":       2,
			"GPS":        3,
			"STORAGE":    4,
			"COMMS":      5,
			"PAYLOAD_TM": 6,
		},

		Variables: map[string]VariableDef{
			// --- CDH / SYSTEM ---
			"TIME":                  {Subsystem: "CDH", Type: format.U32},            // Unix timestamp
			"SC_STATE":              {Subsystem: "CDH", Type: format.U8},             // Spacecraft state
			"SD_USAGE":              {Subsystem: "CDH", Type: format.U32},            // Bytes
			"CURRENT_RAM_USAGE":     {Subsystem: "CDH", Type: format.U8},             // %
			"REBOOT_COUNT":          {Subsystem: "CDH", Type: format.U8},             // Count
			"WATCHDOG_TIMER":        {Subsystem: "CDH", Type: format.U8},             // Status
			"HAL_BITFLAGS":          {Subsystem: "CDH", Type: format.U8},             // Flags
			"DETUMBLING_ERROR_FLAG": {Subsystem: "CDH", Type: format.U8},             // Flag
			// --- EPS (Power) ---
			"EPS_POWER_FLAG":                 {Subsystem: "EPS", Type: format.U8},
			"MAINBOARD_TEMPERATURE":          {Subsystem: "EPS", Type: format.I16, Scale: 10},   // 0.1°C -> °C
			"MAINBOARD_VOLTAGE":              {Subsystem: "EPS", Type: format.I16, Scale: 1000}, // mV -> V
			"MAINBOARD_CURRENT":              {Subsystem: "EPS", Type: format.I16, Scale: 1000}, // mA -> A
			"BATTERY_PACK_TEMPERATURE":       {Subsystem: "EPS", Type: format.I16, Scale: 10},
			"BATTERY_PACK_REPORTED_SOC":      {Subsystem: "EPS", Type: format.U8, Scale: 1},  // %
			"BATTERY_PACK_REPORTED_CAPACITY": {Subsystem: "EPS", Type: format.U16, Scale: 1}, // mAh
			"BATTERY_PACK_CURRENT":           {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"BATTERY_PACK_VOLTAGE":           {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"BATTERY_PACK_MIDPOINT_VOLTAGE":  {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"BATTERY_PACK_TTE":               {Subsystem: "EPS", Type: format.U32, Scale: 1}, // Seconds
			"BATTERY_PACK_TTF":               {Subsystem: "EPS", Type: format.U32, Scale: 1}, // Seconds
			// Coils (Magnetorquers)
			"XP_COIL_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"XP_COIL_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"XM_COIL_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"XM_COIL_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"YP_COIL_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"YP_COIL_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"YM_COIL_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"YM_COIL_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"ZP_COIL_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"ZP_COIL_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"ZM_COIL_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"ZM_COIL_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			// Payload & Solar Inputs
			"JETSON_INPUT_VOLTAGE":  {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"JETSON_INPUT_CURRENT":  {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"RF_LDO_OUTPUT_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"RF_LDO_OUTPUT_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"GPS_VOLTAGE":           {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"GPS_CURRENT":           {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			// Solar Arrays
			"XP_SOLAR_CHARGE_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"XP_SOLAR_CHARGE_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"XM_SOLAR_CHARGE_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"XM_SOLAR_CHARGE_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"YP_SOLAR_CHARGE_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"YP_SOLAR_CHARGE_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"YM_SOLAR_CHARGE_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"YM_SOLAR_CHARGE_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"ZP_SOLAR_CHARGE_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"ZP_SOLAR_CHARGE_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"ZM_SOLAR_CHARGE_VOLTAGE": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			"ZM_SOLAR_CHARGE_CURRENT": {Subsystem: "EPS", Type: format.I16, Scale: 1000},
			// --- ADCS ---
			"MODE":       {Subsystem: "ADCS", Type: format.U8},
			"GYRO_X":     {Subsystem: "ADCS", Type: format.F32, Scale: 10000000},
			"GYRO_Y":     {Subsystem: "ADCS", Type: format.F32, Scale: 10000000},
			"GYRO_Z":     {Subsystem: "ADCS", Type: format.F32, Scale: 10000000},
			"MAG_X":      {Subsystem: "ADCS", Type: format.F32, Scale: 10000000},
			"MAG_Y":      {Subsystem: "ADCS", Type: format.F32, Scale: 10000000},
			"MAG_Z":      {Subsystem: "ADCS", Type: format.F32, Scale: 10000000},
			"SUN_STATUS": {Subsystem: "ADCS", Type: format.U8},
			"SUN_VEC_X":  {Subsystem: "ADCS", Type: format.F32, Scale: 10000000},
			"SUN_VEC_Y":  {Subsystem: "ADCS", Type: format.F32, Scale: 10000000},
			"SUN_VEC_Z":  {Subsystem: "ADCS", Type: format.F32, Scale: 10000000},
			// Light Sensors
			"LIGHT_SENSOR_XP":  {Subsystem: "ADCS", Type: format.U16},
			"LIGHT_SENSOR_XM":  {Subsystem: "ADCS", Type: format.U16},
			"LIGHT_SENSOR_YP":  {Subsystem: "ADCS", Type: format.U16},
			"LIGHT_SENSOR_YM":  {Subsystem: "ADCS", Type: format.U16},
			"LIGHT_SENSOR_ZP1": {Subsystem: "ADCS", Type: format.U16},
			"LIGHT_SENSOR_ZP2": {Subsystem: "ADCS", Type: format.U16},
			"LIGHT_SENSOR_ZP3": {Subsystem: "ADCS", Type: format.U16},
			"LIGHT_SENSOR_ZP4": {Subsystem: "ADCS", Type: format.U16},
			"LIGHT_SENSOR_ZM":  {Subsystem: "ADCS", Type: format.U16},
			// Coil Status flags
			"XP_COIL_STATUS": {Subsystem: "ADCS", Type: format.U8},
			"XM_COIL_STATUS": {Subsystem: "ADCS", Type: format.U8},
			"YP_COIL_STATUS": {Subsystem: "ADCS", Type: format.U8},
			"YM_COIL_STATUS": {Subsystem: "ADCS", Type: format.U8},
			"ZP_COIL_STATUS": {Subsystem: "ADCS", Type: format.U8},
			"ZM_COIL_STATUS": {Subsystem: "ADCS", Type: format.U8},
			// --- GPS ---
			"GPS_MESSAGE_ID":       {Subsystem: "GPS", Type: format.U8},
			"GPS_FIX_MODE":         {Subsystem: "GPS", Type: format.U8},
			"GPS_NUMBER_OF_SV":     {Subsystem: "GPS", Type: format.U8},
			"GPS_GNSS_WEEK":        {Subsystem: "GPS", Type: format.U16},
			"GPS_GNSS_TOW":         {Subsystem: "GPS", Type: format.U32},
			"GPS_LATITUDE":         {Subsystem: "GPS", Type: format.I32, Scale: 10000000}, // 1e-7 deg -> deg
			"GPS_LONGITUDE":        {Subsystem: "GPS", Type: format.I32, Scale: 10000000},
			"GPS_ELLIPSOID_ALT":    {Subsystem: "GPS", Type: format.I32, Scale: 100}, // cm -> m
			"GPS_MEAN_SEA_LVL_ALT": {Subsystem: "GPS", Type: format.I32, Scale: 100},
			"GPS_ECEF_X":           {Subsystem: "GPS", Type: format.I32, Scale: 100},
			"GPS_ECEF_Y":           {Subsystem: "GPS", Type: format.I32, Scale: 100},
			"GPS_ECEF_Z":           {Subsystem: "GPS", Type: format.I32, Scale: 100},
			"GPS_ECEF_VX":          {Subsystem: "GPS", Type: format.I32, Scale: 100}, // cm/s -> m/s
			"GPS_ECEF_VY":          {Subsystem: "GPS", Type: format.I32, Scale: 100},
			"GPS_ECEF_VZ":          {Subsystem: "GPS", Type: format.I32, Scale: 100},
			// --- STORAGE ---
			"STORAGE_TOTAL":     {Subsystem: "STORAGE", Type: format.U32},
			"CDH_NUM_FILES":     {Subsystem: "STORAGE", Type: format.U32},
			"CDH_DIR_SIZE":      {Subsystem: "STORAGE", Type: format.U32},
			"EPS_NUM_FILES":     {Subsystem: "STORAGE", Type: format.U32},
			"EPS_DIR_SIZE":      {Subsystem: "STORAGE", Type: format.U32},
			"ADCS_NUM_FILES":    {Subsystem: "STORAGE", Type: format.U32},
			"ADCS_DIR_SIZE":     {Subsystem: "STORAGE", Type: format.U32},
			"COMMS_NUM_FILES":   {Subsystem: "STORAGE", Type: format.U32},
			"COMMS_DIR_SIZE":    {Subsystem: "STORAGE", Type: format.U32},
			"GPS_NUM_FILES":     {Subsystem: "STORAGE", Type: format.U32},
			"GPS_DIR_SIZE":      {Subsystem: "STORAGE", Type: format.U32},
			"PAYLOAD_NUM_FILES": {Subsystem: "STORAGE", Type: format.U32},
			"PAYLOAD_DIR_SIZE":  {Subsystem: "STORAGE", Type: format.U32},
			"COMMAND_NUM_FILES": {Subsystem: "STORAGE", Type: format.U32},
			"COMMAND_DIR_SIZE":  {Subsystem: "STORAGE", Type: format.U32},
			// --- PAYLOAD_TM ---
			"PAYLOAD_STATE":       {Subsystem: "PAYLOAD_TM", Type: format.U8},
			"PAYLOAD_TEMPERATURE": {Subsystem: "PAYLOAD_TM", Type: format.I16, Scale: 10},
			"PAYLOAD_UPTIME":      {Subsystem: "PAYLOAD_TM", Type: format.U32},
			"IMAGES_STORED":       {Subsystem: "PAYLOAD_TM", Type: format.U16},
			"LAST_IMAGE_ID":       {Subsystem: "PAYLOAD_TM", Type: format.U32},
		},

		Reports: map[string][]ReportField{
			"TM_HEARTBEAT": argusHeartbeatFields(),
			"TM_STORAGE": appendFields(argusCDHFields(),
				"STORAGE",
				"STORAGE_TOTAL",
				"CDH_NUM_FILES", "CDH_DIR_SIZE",
				"EPS_NUM_FILES", "EPS_DIR_SIZE",
				"ADCS_NUM_FILES", "ADCS_DIR_SIZE",
				"COMMS_NUM_FILES", "COMMS_DIR_SIZE",
				"GPS_NUM_FILES", "GPS_DIR_SIZE",
				"PAYLOAD_NUM_FILES", "PAYLOAD_DIR_SIZE",
				"COMMAND_NUM_FILES", "COMMAND_DIR_SIZE",
			),
			"TM_HAL": argusCDHFields(),
			"TM_PAYLOAD": appendFields(argusCDHFields(),
				"PAYLOAD_TM",
				"PAYLOAD_STATE", "PAYLOAD_TEMPERATURE", "PAYLOAD_UPTIME",
				"IMAGES_STORED", "LAST_IMAGE_ID",
			),
			"TM_TEST": {
				{Variable: "TIME", Subsystem: "CDH"},
				{Variable: "SC_STATE", Subsystem: "CDH"},
				{Variable: "GPS_MESSAGE_ID", Subsystem: "GPS"},
			},
		},

		Commands: []CommandDef{
			// Flight commands.
			{Name: "FORCE_REBOOT", Handler: "FORCE_REBOOT"},
			{Name: "SUM", Precondition: "valid_inputs", Args: []string{"op1", "op2"}, Handler: "SUM"},
			{Name: "SWITCH_TO_STATE", Precondition: "valid_state", Args: []string{"target_state_id", "time_in_state"}, Handler: "SWITCH_TO_STATE"},
			{Name: "UPLINK_TIME_REFERENCE", Precondition: "valid_time_format", Args: []string{"time_reference"}, Handler: "UPLINK_TIME_REFERENCE"},
			{Name: "TURN_OFF_PAYLOAD", Handler: "TURN_OFF_PAYLOAD"},
			{Name: "SCHEDULE_OD_EXPERIMENT", Handler: "SCHEDULE_OD_EXPERIMENT"},
			{Name: "REQUEST_TM_NOMINAL", Handler: "REQUEST_TM_NOMINAL"},
			{Name: "REQUEST_TM_HAL", Handler: "REQUEST_TM_HAL"},
			{Name: "REQUEST_TM_STORAGE", Handler: "REQUEST_TM_STORAGE"},
			{Name: "REQUEST_TM_PAYLOAD", Handler: "REQUEST_TM_PAYLOAD"},
			{Name: "REQUEST_FILE_METADATA", Precondition: "file_id_exists", Args: []string{"file_id", "file_time"}, Handler: "REQUEST_FILE_METADATA"},
			{Name: "REQUEST_FILE_PKT", Precondition: "file_id_exists", Args: []string{"file_id", "file_time"}, Handler: "REQUEST_FILE_PKT"},
			{Name: "REQUEST_IMAGE", Handler: "REQUEST_IMAGE"},
			{Name: "DOWNLINK_ALL", Precondition: "file_id_exists", Args: []string{"file_id", "file_time"}, Handler: "DOWNLINK_ALL"},
			// File-transfer transaction commands.
			{Name: "CREATE_TRANS", Args: []string{"tid", "string_command"}, Handler: "CREATE_TRANS"},
			{Name: "INIT_TRANS", Args: []string{"tid", "number_of_packets", "hash_MSB", "hash_middlesb", "hash_LSB"}, Handler: "INIT_TRANS"},
			{Name: "GENERATE_ALL_PACKETS", Args: []string{"tid"}, Handler: "GENERATE_ALL_PACKETS"},
			{Name: "GENERATE_X_PACKETS", Args: []string{"tid", "x"}, Handler: "GENERATE_X_PACKETS"},
			{Name: "GET_SINGLE_PACKET", Args: []string{"tid", "seq_number"}, Handler: "GET_SINGLE_PACKET"},
			{Name: "CONFIRM_BITMAP", Args: []string{"tid", "seq_offset", "bitmap_msb", "bitmap_lsb"}, Handler: "CONFIRM_BITMAP"},
			{Name: "SYNC_BITMAP", Args: []string{"tid", "seq_offset", "bitmap_msb", "bitmap_lsb"}, Handler: "SYNC_BITMAP"},
			{Name: "UPLINK_FILE_PKT", Args: []string{"tid", "seq_number", "packet_data"}, Handler: "UPLINK_FILE_PKT"},
		},

		Arguments: map[string]format.Scalar{
			"target_state_id": format.U8,  // Target state ID
			"time_in_state":   format.U32, // Time to stay in the state (seconds)
			"time_reference":  format.U32, // Unix timestamp for time reference
			"file_id":         format.U32, // ID of the file to request/downlink
			"file_time":       format.U32, // Timestamp of the file to request/downlink
			"op1":             format.U32, // Operand 1 for math operations
			"op2":             format.U32, // Operand 2 for math operations

			"tid":               format.U8,
			"number_of_packets": format.U16,
			"x":                 format.U16,
			"seq_number":        format.U16,
			"seq_offset":        format.U16,
			"bitmap_msb":        format.U16,
			"bitmap_lsb":        format.U16,
			"hash_MSB":          format.U64,
			"hash_middlesb":     format.U64,
			"hash_LSB":          format.U32,

			"string_command": format.TrailingUTF8,
			"packet_data":    format.Blob,
		},
	}
}

// argusCDHFields is the common CDH block every housekeeping report starts with.
func argusCDHFields() []ReportField {
	return []ReportField{
		{Variable: "TIME", Subsystem: "CDH"},
		{Variable: "SC_STATE", Subsystem: "CDH"},
		{Variable: "SD_USAGE", Subsystem: "CDH"},
		{Variable: "CURRENT_RAM_USAGE", Subsystem: "CDH"},
		{Variable: "REBOOT_COUNT", Subsystem: "CDH"},
		{Variable: "WATCHDOG_TIMER", Subsystem: "CDH"},
		{Variable: "HAL_BITFLAGS", Subsystem: "CDH"},
		{Variable: "DETUMBLING_ERROR_FLAG", Subsystem: "CDH"},
	}
}

func appendFields(fields []ReportField, subsystem string, names ...string) []ReportField {
	for _, name := range names {
		fields = append(fields, ReportField{Variable: name, Subsystem: subsystem})
	}

	return fields
}

func argusHeartbeatFields() []ReportField {
	fields := argusCDHFields()
	fields = appendFields(fields, "EPS",
		"EPS_POWER_FLAG",
		"MAINBOARD_TEMPERATURE", "MAINBOARD_VOLTAGE", "MAINBOARD_CURRENT",
		"BATTERY_PACK_TEMPERATURE", "BATTERY_PACK_REPORTED_SOC", "BATTERY_PACK_REPORTED_CAPACITY",
		"BATTERY_PACK_CURRENT", "BATTERY_PACK_VOLTAGE", "BATTERY_PACK_MIDPOINT_VOLTAGE",
		"BATTERY_PACK_TTE", "BATTERY_PACK_TTF",
		"XP_COIL_VOLTAGE", "XP_COIL_CURRENT",
		"XM_COIL_VOLTAGE", "XM_COIL_CURRENT",
		"YP_COIL_VOLTAGE", "YP_COIL_CURRENT",
		"YM_COIL_VOLTAGE", "YM_COIL_CURRENT",
		"ZP_COIL_VOLTAGE", "ZP_COIL_CURRENT",
		"ZM_COIL_VOLTAGE", "ZM_COIL_CURRENT",
		"JETSON_INPUT_VOLTAGE", "JETSON_INPUT_CURRENT",
		"RF_LDO_OUTPUT_VOLTAGE", "RF_LDO_OUTPUT_CURRENT",
		"GPS_VOLTAGE", "GPS_CURRENT",
		"XP_SOLAR_CHARGE_VOLTAGE", "XP_SOLAR_CHARGE_CURRENT",
		"XM_SOLAR_CHARGE_VOLTAGE", "XM_SOLAR_CHARGE_CURRENT",
		"YP_SOLAR_CHARGE_VOLTAGE", "YP_SOLAR_CHARGE_CURRENT",
		"YM_SOLAR_CHARGE_VOLTAGE", "YM_SOLAR_CHARGE_CURRENT",
		"ZP_SOLAR_CHARGE_VOLTAGE", "ZP_SOLAR_CHARGE_CURRENT",
		"ZM_SOLAR_CHARGE_VOLTAGE", "ZM_SOLAR_CHARGE_CURRENT",
	)
	fields = appendFields(fields, "ADCS",
		"MODE",
		"GYRO_X", "GYRO_Y", "GYRO_Z",
		"MAG_X", "MAG_Y", "MAG_Z",
		"SUN_STATUS",
		"SUN_VEC_X", "SUN_VEC_Y", "SUN_VEC_Z",
		"LIGHT_SENSOR_XP", "LIGHT_SENSOR_XM",
		"LIGHT_SENSOR_YP", "LIGHT_SENSOR_YM",
		"LIGHT_SENSOR_ZP1", "LIGHT_SENSOR_ZP2", "LIGHT_SENSOR_ZP3", "LIGHT_SENSOR_ZP4",
		"LIGHT_SENSOR_ZM",
		"XP_COIL_STATUS", "XM_COIL_STATUS",
		"YP_COIL_STATUS", "YM_COIL_STATUS",
		"ZP_COIL_STATUS", "ZM_COIL_STATUS",
	)
	fields = appendFields(fields, "GPS",
		"GPS_MESSAGE_ID", "GPS_FIX_MODE", "GPS_NUMBER_OF_SV",
		"GPS_GNSS_WEEK", "GPS_GNSS_TOW",
		"GPS_LATITUDE", "GPS_LONGITUDE",
		"GPS_ELLIPSOID_ALT", "GPS_MEAN_SEA_LVL_ALT",
		"GPS_ECEF_X", "GPS_ECEF_Y", "GPS_ECEF_Z",
		"GPS_ECEF_VX", "GPS_ECEF_VY", "GPS_ECEF_VZ",
	)

	return fields
}
