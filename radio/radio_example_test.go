package radio_test

import (
	"log"
	"time"

	"github.com/cegea/tea5767-i2c/radio"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/platforms/raspi"
)

func ExampleTEA5767Driver() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	adaptor := raspi.NewAdaptor()

	radioConfig := radio.TEA5767Config{
		BandMode:        radio.EU_BAND,
		Frequency:       99.5,
		NoiseCancelling: true,
		SearchStopLevel: radio.SEARCH_STOP_MID,
		DebugMode:       false,
		Log:             log.Printf,
		DebugLog:        nil,
	}
	tuner, err := radio.NewTEA5767Driver(adaptor, radioConfig)
	if err != nil {
		log.Fatalln(err)
	}

	work := func() {
		// nudge the dial one step up, then settle back
		if err = tuner.SetStationInc(0.1); err != nil {
			log.Fatalln(err)
		}
		if err = tuner.SetStationInc(-0.1); err != nil {
			log.Fatalln(err)
		}

		gobot.Every(1*time.Second, func() {
			status, err := tuner.ReadStatus()
			if err != nil {
				log.Fatalln(err)
			}
			log.Printf("%.2f MHz, signal %s", status.Frequency, status.Quality())
		})
	}

	robot := gobot.NewRobot("FM Receiver demo",
		[]gobot.Connection{adaptor},
		[]gobot.Device{tuner},
		work,
	)

	if err = robot.Start(); err != nil {
		log.Fatalln(err)
	}
}
