// Command inverter-sim emulates an Aurora inverter on a serial device so the
// gateway can be exercised without hardware. Point it at one end of a virtual
// serial pair (socat -d -d pty,raw,echo=0 pty,raw,echo=0) and the gateway at
// the other.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pvbus/pvbus/internal/aurora"
	"github.com/pvbus/pvbus/internal/transport"
)

type simulator struct {
	port    transport.Port
	address byte
	verbose bool
}

func main() {
	device := flag.String("device", "/dev/ttyUSB1", "Serial device to listen on")
	baud := flag.Int("baud", 19200, "Baud rate")
	address := flag.Int("address", 2, "Inverter bus address to answer for")
	verbose := flag.Bool("verbose", false, "Log every exchange")
	flag.Parse()

	port, err := transport.OpenSerial(*device, *baud)
	if err != nil {
		log.Fatalf("open %s: %v", *device, err)
	}
	defer port.Close()

	sim := &simulator{port: port, address: byte(*address), verbose: *verbose}
	log.Printf("simulating Aurora inverter %d on %s", *address, *device)

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go sim.serve()
	<-done
	log.Println("simulator stopped")
}

func (s *simulator) serve() {
	for {
		request, err := s.port.Read(10, time.Second)
		if err != nil {
			continue
		}
		if !aurora.VerifyRequest(request) {
			if s.verbose {
				log.Printf("dropping frame with bad trailer: %s", hex.EncodeToString(request))
			}
			continue
		}
		if request[0] != s.address {
			continue
		}

		response := s.respond(aurora.Function(request[1]), request[2])
		if s.verbose {
			log.Printf("rx %s tx %s", hex.EncodeToString(request), hex.EncodeToString(response))
		}
		if err := s.port.Write(response); err != nil {
			log.Printf("write response: %v", err)
		}
	}
}

// respond fabricates a plausible 8-byte response for the request. Measurement
// values jitter a little so consecutive polls look alive.
func (s *simulator) respond(function aurora.Function, command byte) []byte {
	response := make([]byte, 8)

	switch function {
	case aurora.FunctionMeasure:
		value, ok := measureValue(aurora.MeasureCode(command))
		if !ok {
			response[0] = 52 // variable does not exist
			return response
		}
		jittered := value * (1 + (rand.Float32()-0.5)*0.02)
		binary.BigEndian.PutUint32(response[2:6], math.Float32bits(jittered))
	case aurora.FunctionCumulatedEnergy:
		// whole-kWh counters in Wh, scaled by the command code for variety
		binary.BigEndian.PutUint32(response[2:6], uint32(command+1)*4200)
	default:
		response[0] = 51 // function not implemented
	}
	return response
}

func measureValue(code aurora.MeasureCode) (float32, bool) {
	switch code {
	case aurora.MeasureGridVoltage:
		return 231.4, true
	case aurora.MeasureGridCurrent:
		return 8.7, true
	case aurora.MeasureGridPower:
		return 2012.0, true
	case aurora.MeasureFrequency:
		return 49.98, true
	case aurora.MeasureInverterTemperature, aurora.MeasureBoosterTemperature:
		return 41.5, true
	case aurora.MeasureInput1Power, aurora.MeasureInput2Power:
		return 1050.0, true
	default:
		if _, known := code.Name(); known {
			return 10.0, true
		}
		return 0, false
	}
}
