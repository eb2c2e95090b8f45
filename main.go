package main

import (
	"log"
	"time"

	"github.com/cegea/tea5767-i2c/display"
	"github.com/cegea/tea5767-i2c/radio"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/platforms/raspi"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	adaptor := raspi.NewAdaptor()

	radioConfig := radio.TEA5767Config{
		BandMode:        radio.EU_BAND,
		Frequency:       99.5,
		NoiseCancelling: true,
		SearchStopLevel: radio.SEARCH_STOP_MID,
		Log:             log.Printf,
	}
	tuner, err := radio.NewTEA5767Driver(adaptor, radioConfig)
	if err != nil {
		log.Fatalln(err)
	}

	lcd, err := display.NewLCD1602Driver(adaptor)
	if err != nil {
		log.Fatalln(err)
	}

	work := func() {
		if err = lcd.DisplayMessage("Tuning the FM receiver"); err != nil {
			log.Fatalln(err)
		}

		gobot.Every(2*time.Second, func() {
			status, err := tuner.ReadStatus()
			if err != nil {
				log.Fatalln(err)
			}

			if err = lcd.DisplayStation(status.Frequency, status.StereoLocked, status.Quality()); err != nil {
				log.Fatalln(err)
			}
		})
	}

	robot := gobot.NewRobot("FM Receiver demo",
		[]gobot.Connection{adaptor},
		[]gobot.Device{tuner, lcd},
		work,
	)

	if err = robot.Start(); err != nil {
		log.Fatalln(err)
	}
}
