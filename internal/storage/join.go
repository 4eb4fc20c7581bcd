package storage

import "strconv"

// intersect walks two ascending entry slices and calls emit with the
// "<key>,<valueA>,<valueB>" row for every key present in both.
func intersect(a, b []Entry, emit func(string)) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Key == b[j].Key:
			emit(formatPair(a[i].Key, a[i].Value, b[j].Value))
			i++
			j++
		case a[i].Key < b[j].Key:
			i++
		default:
			j++
		}
	}
}

// symmetricDifference walks two ascending entry slices and calls emit for
// every key present in exactly one of them: "<key>,<valueA>," for A-only keys
// and "<key>,,<valueB>" for B-only keys. Once either side runs out the other
// is drained without further comparison.
func symmetricDifference(a, b []Entry, emit func(string)) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Key == b[j].Key:
			i++
			j++
		case a[i].Key < b[j].Key:
			emit(formatPair(a[i].Key, a[i].Value, ""))
			i++
		default:
			emit(formatPair(b[j].Key, "", b[j].Value))
			j++
		}
	}
	for ; i < len(a); i++ {
		emit(formatPair(a[i].Key, a[i].Value, ""))
	}
	for ; j < len(b); j++ {
		emit(formatPair(b[j].Key, "", b[j].Value))
	}
}

func formatPair(key int, valueA, valueB string) string {
	buf := make([]byte, 0, 22+len(valueA)+len(valueB))
	buf = strconv.AppendInt(buf, int64(key), 10)
	buf = append(buf, ',')
	buf = append(buf, valueA...)
	buf = append(buf, ',')
	buf = append(buf, valueB...)
	return string(buf)
}
