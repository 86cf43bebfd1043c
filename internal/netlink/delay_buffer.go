package netlink

// DataStatus reports what GetData found at the read pointer.
type DataStatus int

const (
	StatusNoData DataStatus = iota
	StatusData
	StatusMissing
)

// DelayBuffer smooths network jitter by holding fixed-size blocks for a
// configured jitter window before they're handed to the consumer,
// synthesising empty "missing" blocks across sequence-number gaps so the
// consumer sees a steady cadence even when packets are lost or reordered.
type DelayBuffer struct {
	blockSize int
	blockTime int

	buffer  [][]byte
	missing []bool

	readPtr, writePtr int
	length            int

	jitterTime, jitterSlots int
	currentTime             int
	lastWriteTime           int
	sequenceNumber          uint8
	running                 bool
}

// NewDelayBuffer builds a buffer sized for jitterTime milliseconds of
// blockTime-sized frames.
func NewDelayBuffer(blockSize, blockTime, jitterTime int) *DelayBuffer {
	jitterSlots := jitterTime / blockTime
	if jitterSlots < 1 {
		jitterSlots = 1
	}
	length := jitterSlots + 10

	db := &DelayBuffer{
		blockSize:   blockSize,
		blockTime:   blockTime,
		buffer:      make([][]byte, length),
		missing:     make([]bool, length),
		length:      length,
		jitterTime:  jitterTime,
		jitterSlots: jitterSlots,
	}
	for i := range db.buffer {
		db.buffer[i] = make([]byte, blockSize)
	}
	return db
}

// AddData stores an inbound frame, synthesising missing-frame placeholders
// for any sequence-number gap since the last write.
func (db *DelayBuffer) AddData(data []byte, seqNo uint8) bool {
	if len(data) != db.blockSize {
		return false
	}
	if !db.running {
		db.running = true
		db.sequenceNumber = seqNo
		db.lastWriteTime = db.currentTime
	}

	expected := db.sequenceNumber
	if seqNo != expected {
		gap := int(seqNo) - int(expected)
		if gap < 0 {
			gap += 256
		}
		if gap > 20 {
			db.sequenceNumber = seqNo
		} else {
			for i := 0; i < gap; i++ {
				db.addMissingFrame(uint8(int(expected) + i))
			}
		}
	}

	db.storeFrame(data, false)
	db.sequenceNumber = uint8((int(seqNo) + 1) % 256)
	db.lastWriteTime = db.currentTime
	return true
}

// GetData pops the next buffered frame once the jitter window has filled.
func (db *DelayBuffer) GetData(data []byte) DataStatus {
	if len(data) < db.blockSize || !db.running {
		return StatusNoData
	}
	if db.currentTime-db.lastWriteTime < db.jitterTime && db.countBufferedFrames() < db.jitterSlots {
		return StatusNoData
	}
	if db.readPtr == db.writePtr {
		return StatusNoData
	}

	copy(data, db.buffer[db.readPtr])
	isMissing := db.missing[db.readPtr]
	db.readPtr = (db.readPtr + 1) % db.length

	if isMissing {
		return StatusMissing
	}
	return StatusData
}

// Clock advances the buffer's internal clock by elapsedMS.
func (db *DelayBuffer) Clock(elapsedMS int) {
	db.currentTime += elapsedMS
}

// Reset clears all buffered frames and stops the buffer.
func (db *DelayBuffer) Reset() {
	db.readPtr, db.writePtr = 0, 0
	db.currentTime, db.lastWriteTime = 0, 0
	db.sequenceNumber = 0
	db.running = false
	for i := range db.missing {
		db.missing[i] = false
	}
}

func (db *DelayBuffer) IsRunning() bool    { return db.running }
func (db *DelayBuffer) JitterTime() int    { return db.jitterTime }

func (db *DelayBuffer) SetJitterTime(jitterTime int) {
	db.jitterTime = jitterTime
	db.jitterSlots = jitterTime / db.blockTime
	if db.jitterSlots < 1 {
		db.jitterSlots = 1
	}
}

func (db *DelayBuffer) storeFrame(data []byte, isMissing bool) {
	copy(db.buffer[db.writePtr], data)
	db.missing[db.writePtr] = isMissing
	db.writePtr = (db.writePtr + 1) % db.length
	if db.writePtr == db.readPtr {
		db.readPtr = (db.readPtr + 1) % db.length
	}
}

func (db *DelayBuffer) addMissingFrame(seqNo uint8) {
	db.storeFrame(make([]byte, db.blockSize), true)
}

func (db *DelayBuffer) countBufferedFrames() int {
	if db.writePtr >= db.readPtr {
		return db.writePtr - db.readPtr
	}
	return (db.length - db.readPtr) + db.writePtr
}

// Stats reports (buffered frame count, jitter slot target, current clock,
// running) for diagnostics.
func (db *DelayBuffer) Stats() (int, int, int, bool) {
	return db.countBufferedFrames(), db.jitterSlots, db.currentTime, db.running
}
