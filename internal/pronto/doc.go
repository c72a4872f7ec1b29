// Package pronto converts Pronto hex infrared codes into the binary packet
// format accepted by Broadlink RM transceivers.
//
// Conversion runs in two stages:
//
//	Pronto hex ──► pulse table (µs) ──► Broadlink IR packet
//
// Stage one rounds each pulse to the nearest microsecond; stage two truncates
// when scaling to device ticks. Stored codes produced by earlier releases
// depend on that exact mix, so neither stage may be "corrected".
//
// # Usage
//
//	packet, err := pronto.ToBroadlink("0000 006D 0022 0002 0155 00AA ...")
//	if err != nil {
//	    return err
//	}
//	hexCode := hex.EncodeToString(packet)
//
// # References
//
//   - Pronto format: http://www.remotecentral.com/features/irdisp2.htm
//   - Broadlink IR packet layout: python-broadlink protocol notes
package pronto
