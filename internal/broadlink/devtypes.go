package broadlink

// rm4Types lists device type codes that speak the RM4 command framing.
var rm4Types = map[uint16]string{
	0x51DA: "RM4 mini",
	0x5209: "RM4 TV mate",
	0x520B: "RM4 pro",
	0x520C: "RM4 mini",
	0x520D: "RM4C mini",
	0x5211: "RM4C mate",
	0x5212: "RM4 TV mate",
	0x5213: "RM4 pro",
	0x5216: "RM4 mini",
	0x5218: "RM4C mate",
	0x5F36: "RM mini 3",
	0x6026: "RM4 pro",
	0x6070: "RM4C mini",
	0x610E: "RM4 mini",
	0x610F: "RM4C mini",
	0x61A2: "RM4 pro",
	0x62BC: "RM4 mini",
	0x62BE: "RM4C mini",
	0x6364: "RM4S",
	0x648D: "RM4 mini",
	0x649B: "RM4 pro",
	0x653A: "RM4 mini",
	0x653C: "RM4 pro",
}

// rmTypes lists device type codes of the original RM framing.
var rmTypes = map[uint16]string{
	0x2712: "RM pro/pro+",
	0x272A: "RM pro",
	0x2737: "RM mini 3",
	0x273D: "RM pro",
	0x277C: "RM home",
	0x2783: "RM home",
	0x2787: "RM pro",
	0x278F: "RM mini",
	0x2797: "RM pro+",
	0x279D: "RM pro+",
	0x27A1: "RM plus",
	0x27A6: "RM plus",
	0x27A9: "RM pro+",
	0x27C2: "RM mini 3",
	0x27C3: "RM pro+",
	0x27C7: "RM mini 3",
	0x27CC: "RM mini 3",
	0x27CD: "RM mini 3",
	0x27D0: "RM mini 3",
	0x27D1: "RM mini 3",
	0x27D3: "RM mini 3",
	0x27DE: "RM mini 3",
}

// IsRM4 reports whether devType uses the RM4 command framing.
func IsRM4(devType uint16) bool {
	_, ok := rm4Types[devType]
	return ok
}

// Model returns a human-readable model name, or "" when devType is unknown.
func Model(devType uint16) string {
	if m, ok := rm4Types[devType]; ok {
		return m
	}
	return rmTypes[devType]
}

// IsSupported reports whether devType is a known RM family unit.
func IsSupported(devType uint16) bool {
	return Model(devType) != ""
}
