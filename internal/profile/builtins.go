package profile

// Every builtin template carries an explicit -f: conversions write to a
// bare staging name ffmpeg cannot infer a container from.
const h264MP4Template = "-acodec aac -ab 160k -ac 2 -vcodec libx264 -preset slow -crf 22 -f mp4 -s {ssize}"

// Builtins returns the static catalog: bare format profiles plus the
// branded device families. Bundles loaded afterwards may override any of
// these by identifier.
func Builtins() []Entry {
	return []Entry{
		Bare(mustProfile(NewFFmpegProfile("WebM HD", MediaTypeFormat,
			"-f webm -vcodec libvpx -acodec libvorbis -b:v 2000k -b:a 160k -s {ssize}",
			WithExtension("webm"),
			WithTargetBox(1280, 720),
			WithBitrate(2_160_000),
		))),
		Bare(mustProfile(NewFFmpegProfile("WebM SD", MediaTypeFormat,
			"-f webm -vcodec libvpx -acodec libvorbis -b:v 1000k -b:a 112k -s {ssize}",
			WithExtension("webm"),
			WithTargetBox(640, 480),
			WithBitrate(1_112_000),
		))),
		Bare(mustProfile(NewFFmpegProfile("MP4", MediaTypeFormat,
			h264MP4Template,
			WithExtension("mp4"),
			WithTargetBox(1280, 720),
		))),
		Bare(mustProfile(NewFFmpegProfile("Ogg Theora", MediaTypeFormat,
			"-f ogg -vcodec libtheora -acodec libvorbis -b:v 1200k -b:a 128k -s {ssize}",
			WithExtension("ogv"),
			WithTargetBox(1280, 720),
			WithBitrate(1_328_000),
		))),
		Bare(mustProfile(NewFFmpegProfile("MP3", MediaTypeFormat,
			"-f mp3 -vn -ac 2 -ab 192k",
			WithExtension("mp3"),
			WithBitrate(192_000),
		))),
		Group("apple",
			mustProfile(NewFFmpegProfile("iPhone", MediaTypeDevice,
				h264MP4Template,
				WithExtension("mp4"),
				WithTargetBox(960, 640),
			)),
			mustProfile(NewFFmpegProfile("iPad", MediaTypeDevice,
				h264MP4Template,
				WithExtension("mp4"),
				WithTargetBox(1024, 768),
			)),
			mustProfile(NewFFmpegProfile("Apple TV", MediaTypeDevice,
				h264MP4Template,
				WithExtension("mp4"),
				WithTargetBox(1280, 720),
			)),
		),
		Group("android",
			mustProfile(NewFFmpegProfile("Android Phone", MediaTypeDevice,
				h264MP4Template,
				WithExtension("mp4"),
				WithTargetBox(800, 480),
			)),
			mustProfile(NewFFmpegProfile("Android Tablet", MediaTypeDevice,
				h264MP4Template,
				WithExtension("mp4"),
				WithTargetBox(1280, 800),
			)),
		),
		Group("kindle",
			mustProfile(NewFFmpegProfile("Kindle Fire", MediaTypeDevice,
				h264MP4Template,
				WithExtension("mp4"),
				WithTargetBox(1024, 600),
			)),
		),
	}
}

func mustProfile(p *FFmpegProfile, err error) Profile {
	if err != nil {
		panic(err)
	}
	return p
}
