package swe

import (
	"runtime"
	"strings"
)

// primitives is the function table bound from the engine library.
// Signatures mirror the C prototypes of swephexp.h.
type primitives struct {
	julday      func(year, month, day int32, hour float64, gregflag int32) float64
	calcUT      func(tjdUT float64, ipl, iflag int32, xx *float64, serr *byte) int32
	revjul      func(tjd float64, gregflag int32, year, month, day *int32, hour *float64)
	setEphePath func(path string)
	setTopo     func(geolon, geolat, geoalt float64)
	azalt       func(tjdUT float64, calcFlag int32, geopos *float64, atpress, attemp float64, xin, xaz *float64)
	close       func()
}

// lib implements Library over a bound primitive table. Every call that hands
// memory to the engine acquires its buffers from a pool and releases them in
// a defer, so no buffer outlives the call.
type lib struct {
	fn primitives

	positions *bufferPool[positionBuf]
	vectors   *bufferPool[vectorBuf]
	dates     *bufferPool[dateBuf]
	errs      *bufferPool[errBuf]

	unload func() error
}

func newLib(fn primitives, unload func() error) *lib {
	return &lib{
		fn:        fn,
		positions: newBufferPool[positionBuf](),
		vectors:   newBufferPool[vectorBuf](),
		dates:     newBufferPool[dateBuf](),
		errs:      newBufferPool[errBuf](),
		unload:    unload,
	}
}

func (l *lib) JulianDay(date Date, cal Calendar) float64 {
	return l.fn.julday(int32(date.Year), int32(date.Month), int32(date.Day), date.Hour, int32(cal)) //nolint:gosec // calendar fields are small
}

func (l *lib) Position(jd float64, body Body, flags Flag) (Position, error) {
	xx := l.positions.acquire()
	defer l.positions.release(xx)

	serr := l.errs.acquire()
	defer l.errs.release(serr)

	status := l.fn.calcUT(jd, int32(body), int32(flags), &xx[0], &serr[0])
	runtime.KeepAlive(xx)
	runtime.KeepAlive(serr)

	if status < 0 {
		return Position{}, &CalculationError{
			Status:  status,
			Message: strings.TrimSpace(cString(serr[:])),
		}
	}

	return Position(*xx), nil
}

func (l *lib) ReverseJulian(jd float64, cal Calendar) Date {
	out := l.dates.acquire()
	defer l.dates.release(out)

	l.fn.revjul(jd, int32(cal), &out.year, &out.month, &out.day, &out.hour)
	runtime.KeepAlive(out)

	return Date{
		Year:  int(out.year),
		Month: int(out.month),
		Day:   int(out.day),
		Hour:  out.hour,
	}
}

func (l *lib) SetObserver(obs Observer) {
	l.fn.setTopo(obs.Longitude, obs.Latitude, obs.Altitude)
}

func (l *lib) HorizonTransform(jd float64, mode HorizonMode, obs Observer, atm Atmosphere, in [3]float64) Horizon {
	geopos := l.vectors.acquire()
	defer l.vectors.release(geopos)

	xin := l.vectors.acquire()
	defer l.vectors.release(xin)

	xaz := l.vectors.acquire()
	defer l.vectors.release(xaz)

	*geopos = vectorBuf{obs.Longitude, obs.Latitude, obs.Altitude}
	*xin = in

	l.fn.azalt(jd, int32(mode), &geopos[0], atm.Pressure, atm.Temperature, &xin[0], &xaz[0])
	runtime.KeepAlive(geopos)
	runtime.KeepAlive(xin)
	runtime.KeepAlive(xaz)

	return Horizon{
		Azimuth:          xaz[0],
		TrueAltitude:     xaz[1],
		ApparentAltitude: xaz[2],
	}
}

func (l *lib) SetSearchPath(path string) {
	l.fn.setEphePath(path)
}

func (l *lib) Close() error {
	if l.fn.close != nil {
		l.fn.close()
	}

	if l.unload != nil {
		return l.unload()
	}

	return nil
}

// liveBuffers reports scratch buffers currently held, across all pools.
func (l *lib) liveBuffers() int64 {
	return l.positions.Live() + l.vectors.Live() + l.dates.Live() + l.errs.Live()
}

// Ensure lib implements the interface
var _ Library = (*lib)(nil)
