package mcpserver

// FrameFormat describes the frames consumers read from the shared transport.
const FrameFormat = `# Raido Frame Format

Every publish overwrites the start of the shared region with one frame.
All integers are little-endian.

| offset | size | field |
|---|---|---|
| 0 | 4 | total length, header included (8 + payload) |
| 4 | 4 | terminated flag: 1 on the final frame, else 0 |
| 8 | n | payload |

Readers hold a shared ` + "`flock`" + ` on the file while copying.

## Payload

1. Version byte (currently 1).
2. The user aircraft record.
3. u32 count of traffic records, followed by that many aircraft records.

Strings are a u16 byte length followed by UTF-8 bytes. Times are i64 unix
nanoseconds, 0 meaning unset. Float fields equal to ` + "`3.4028235e38`" + ` are
unavailable for that subject.

## Termination

The last frame written before shutdown has the terminated flag set. It carries
the last snapshot when it fits, otherwise an empty payload (length 8).
`
