// Package secure keeps key-store material and passwords encrypted while
// they sit in process memory.
//
// It wraps memguard enclaves. Key stores read from a one-shot stream and
// the key-store password are held in a SecureBuffer and only decrypted
// for the duration of a PKCS#12 decode:
//
//	buf, err := secure.NewSecureBuffer(blob)
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	plain, err := buf.Bytes()
//
// Memory locking depends on RLIMIT_MEMLOCK on Linux. When mlock is not
// available memguard falls back to regular memory and the data stays
// encrypted at rest.
package secure
