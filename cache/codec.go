package cache

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/solarsim/entity"
	"github.com/tsinghua-fib-lab/solarsim/entity/race"
	"github.com/tsinghua-fib-lab/solarsim/entity/route"
	"github.com/tsinghua-fib-lab/solarsim/entity/weather"
	"github.com/tsinghua-fib-lab/solarsim/utils/config"
	"google.golang.org/protobuf/encoding/protowire"
)

// 各对象按protobuf线格式编码，字段号固定，未知字段忽略

func corrupted(err error) error {
	return errors.Wrap(ErrCorrupted, err.Error())
}

// eachField 遍历消息的顶层字段
func eachField(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return corrupted(protowire.ParseError(n))
		}
		b = b[n:]
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return corrupted(protowire.ParseError(m))
		}
		if err := fn(num, typ, b[:m]); err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	if len(vs) == 0 {
		return b
	}
	inner := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		inner = protowire.AppendFixed64(inner, math.Float64bits(v))
	}
	return appendMessage(b, num, inner)
}

// appendBits 布尔数组按位打包，首字段为长度
func appendBits(b []byte, num protowire.Number, vs []bool) []byte {
	inner := protowire.AppendVarint(nil, uint64(len(vs)))
	packed := make([]byte, (len(vs)+7)/8)
	for i, v := range vs {
		if v {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return appendMessage(b, num, append(inner, packed...))
}

func bytesValue(typ protowire.Type, v []byte) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, corrupted(errors.Errorf("wire type %d, want bytes", typ))
	}
	out, n := protowire.ConsumeBytes(v)
	if n < 0 {
		return nil, corrupted(protowire.ParseError(n))
	}
	return out, nil
}

func doubleValue(typ protowire.Type, v []byte) (float64, error) {
	if typ != protowire.Fixed64Type {
		return 0, corrupted(errors.Errorf("wire type %d, want fixed64", typ))
	}
	u, n := protowire.ConsumeFixed64(v)
	if n < 0 {
		return 0, corrupted(protowire.ParseError(n))
	}
	return math.Float64frombits(u), nil
}

func intValue(typ protowire.Type, v []byte) (int64, error) {
	if typ != protowire.VarintType {
		return 0, corrupted(errors.Errorf("wire type %d, want varint", typ))
	}
	u, n := protowire.ConsumeVarint(v)
	if n < 0 {
		return 0, corrupted(protowire.ParseError(n))
	}
	return protowire.DecodeZigZag(u), nil
}

func doublesValue(typ protowire.Type, v []byte) ([]float64, error) {
	b, err := bytesValue(typ, v)
	if err != nil {
		return nil, err
	}
	if len(b)%8 != 0 {
		return nil, corrupted(errors.Errorf("packed doubles length %d", len(b)))
	}
	out := make([]float64, 0, len(b)/8)
	for len(b) > 0 {
		u, n := protowire.ConsumeFixed64(b)
		out = append(out, math.Float64frombits(u))
		b = b[n:]
	}
	return out, nil
}

func bitsValue(typ protowire.Type, v []byte) ([]bool, error) {
	b, err := bytesValue(typ, v)
	if err != nil {
		return nil, err
	}
	length, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return nil, corrupted(protowire.ParseError(n))
	}
	b = b[n:]
	if uint64(len(b)) != (length+7)/8 {
		return nil, corrupted(errors.Errorf("bit mask of %d values has %d bytes", length, len(b)))
	}
	out := make([]bool, length)
	for i := range out {
		out[i] = b[i/8]&(1<<(i%8)) != 0
	}
	return out, nil
}

func encodeCoord(c entity.Coord) []byte {
	b := appendDouble(nil, 1, c.Lat)
	return appendDouble(b, 2, c.Lon)
}

func decodeCoord(b []byte) (c entity.Coord, err error) {
	err = eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1:
			c.Lat, err = doubleValue(typ, v)
		case 2:
			c.Lon, err = doubleValue(typ, v)
		}
		return err
	})
	return
}

// RouteCodec 单圈路线数据
// 字段：1-坐标（重复消息），2-海拔，3-时区，4-限速
type RouteCodec struct{}

// Encode 编码
func (RouteCodec) Encode(d route.Data) []byte {
	var b []byte
	for _, c := range d.Coords {
		b = appendMessage(b, 1, encodeCoord(c))
	}
	b = appendDoubles(b, 2, d.Elevations)
	b = appendDoubles(b, 3, d.TimeZones)
	return appendDoubles(b, 4, d.SpeedLimits)
}

// Decode 解码并校验
func (RouteCodec) Decode(data []byte) (route.Data, error) {
	var d route.Data
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1:
			msg, err := bytesValue(typ, v)
			if err != nil {
				return err
			}
			c, err := decodeCoord(msg)
			if err != nil {
				return err
			}
			d.Coords = append(d.Coords, c)
		case 2:
			d.Elevations, err = doublesValue(typ, v)
		case 3:
			d.TimeZones, err = doublesValue(typ, v)
		case 4:
			d.SpeedLimits, err = doublesValue(typ, v)
		}
		return err
	})
	if err != nil {
		return d, err
	}
	if err := d.Validate(); err != nil {
		return d, corrupted(err)
	}
	return d, nil
}

func encodeRanges(b []byte, num protowire.Number, ranges []config.TimeRange) []byte {
	for _, r := range ranges {
		msg := appendInt(nil, 1, r.Begin)
		msg = appendInt(msg, 2, r.End)
		b = appendMessage(b, num, msg)
	}
	return b
}

func decodeRange(typ protowire.Type, v []byte) (r config.TimeRange, err error) {
	msg, err := bytesValue(typ, v)
	if err != nil {
		return r, err
	}
	err = eachField(msg, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1:
			r.Begin, err = intValue(typ, v)
		case 2:
			r.End, err = intValue(typ, v)
		}
		return err
	})
	return
}

// RaceCodec 比赛数据
// 字段：1-类型，2-首日零点Unix秒，3-圈数，4-每天的时间规则（1-行驶区间，2-充电区间），
// 5-转弯半径，6-逐秒行驶掩码，7-逐秒充电掩码
type RaceCodec struct{}

// Encode 编码
func (RaceCodec) Encode(r *race.Race) []byte {
	b := appendString(nil, 1, r.Type())
	b = appendInt(b, 2, r.Date().Unix())
	b = appendInt(b, 3, int64(r.Tiling()))
	for _, d := range r.Days() {
		day := encodeRanges(nil, 1, d.Driving)
		day = encodeRanges(day, 2, d.Charging)
		b = appendMessage(b, 4, day)
	}
	b = appendDoubles(b, 5, r.CorneringRadii())
	b = appendBits(b, 6, r.DrivingBoolean())
	return appendBits(b, 7, r.ChargingBoolean())
}

// Decode 解码并恢复比赛
func (RaceCodec) Decode(data []byte) (*race.Race, error) {
	var (
		raceType          string
		date              time.Time
		tiling            int64
		days              []config.DayRanges
		radii             []float64
		driving, charging []bool
	)
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1:
			var s []byte
			s, err = bytesValue(typ, v)
			raceType = string(s)
		case 2:
			var unix int64
			unix, err = intValue(typ, v)
			date = time.Unix(unix, 0).UTC()
		case 3:
			tiling, err = intValue(typ, v)
		case 4:
			var msg []byte
			if msg, err = bytesValue(typ, v); err != nil {
				return err
			}
			var day config.DayRanges
			err = eachField(msg, func(num protowire.Number, typ protowire.Type, v []byte) error {
				r, err := decodeRange(typ, v)
				if err != nil {
					return err
				}
				switch num {
				case 1:
					day.Driving = append(day.Driving, r)
				case 2:
					day.Charging = append(day.Charging, r)
				}
				return nil
			})
			days = append(days, day)
		case 5:
			radii, err = doublesValue(typ, v)
		case 6:
			driving, err = bitsValue(typ, v)
		case 7:
			charging, err = bitsValue(typ, v)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	r, err := race.Restore(raceType, date, int(tiling), days, radii, driving, charging)
	if err != nil {
		return nil, corrupted(err)
	}
	return r, nil
}

// ForecastCodec 天气预报
// 字段：1-数据提供方，2-站点（1-坐标，2-样本（1-时间戳，2-风速，3-风向，4-GHI，5-云量））
type ForecastCodec struct{}

// Encode 编码
func (ForecastCodec) Encode(f *weather.Forecast) []byte {
	b := appendString(nil, 1, f.Provider)
	for _, s := range f.Stations {
		station := appendMessage(nil, 1, encodeCoord(s.Coord))
		for _, w := range s.Samples {
			sample := appendInt(nil, 1, w.Timestamp)
			sample = appendDouble(sample, 2, w.WindSpeed)
			sample = appendDouble(sample, 3, w.WindDirection)
			sample = appendDouble(sample, 4, w.GHI)
			sample = appendDouble(sample, 5, w.CloudCover)
			station = appendMessage(station, 2, sample)
		}
		b = appendMessage(b, 2, station)
	}
	return b
}

func decodeSample(b []byte) (w entity.WeatherSample, err error) {
	err = eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		var err error
		switch num {
		case 1:
			w.Timestamp, err = intValue(typ, v)
		case 2:
			w.WindSpeed, err = doubleValue(typ, v)
		case 3:
			w.WindDirection, err = doubleValue(typ, v)
		case 4:
			w.GHI, err = doubleValue(typ, v)
		case 5:
			w.CloudCover, err = doubleValue(typ, v)
		}
		return err
	})
	return
}

func decodeStation(b []byte) (s weather.Station, err error) {
	err = eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		msg, err := bytesValue(typ, v)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			s.Coord, err = decodeCoord(msg)
		case 2:
			var w entity.WeatherSample
			w, err = decodeSample(msg)
			s.Samples = append(s.Samples, w)
		}
		return err
	})
	return
}

// Decode 解码并校验
func (ForecastCodec) Decode(data []byte) (*weather.Forecast, error) {
	f := &weather.Forecast{}
	err := eachField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		msg, err := bytesValue(typ, v)
		if err != nil {
			return err
		}
		switch num {
		case 1:
			f.Provider = string(msg)
		case 2:
			s, err := decodeStation(msg)
			if err != nil {
				return err
			}
			f.Stations = append(f.Stations, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, corrupted(err)
	}
	return f, nil
}
